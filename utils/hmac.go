package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// EmptyBodyHash is the SHA256 hash of an empty body
const EmptyBodyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// SignatureTolerance bounds the clock skew accepted on signed callbacks.
const SignatureTolerance = 5 * time.Minute

// BuildStringToSign constructs the canonical string for callback signatures.
// Format: METHOD\nPATH\nTIMESTAMP\nSHA256(body)
func BuildStringToSign(method, path string, timestamp int64, bodyHash string) string {
	return fmt.Sprintf("%s\n%s\n%d\n%s", method, path, timestamp, bodyHash)
}

// ComputeHMACSHA256 returns the hex-encoded HMAC-SHA256 of message.
func ComputeHMACSHA256(secretKey, message string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// SignCallback computes the signature a storage callback must present.
func SignCallback(secretKey, method, path string, timestamp int64, body []byte) string {
	return ComputeHMACSHA256(secretKey, BuildStringToSign(method, path, timestamp, HashBodySHA256(body)))
}

// SecureCompare performs constant-time string comparison.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashBodySHA256 returns the hex SHA256 of body, EmptyBodyHash for no body.
func HashBodySHA256(body []byte) string {
	if len(body) == 0 {
		return EmptyBodyHash
	}
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// WithinTolerance reports whether the unix timestamp is close enough to now.
func WithinTolerance(timestamp int64, now time.Time) bool {
	diff := now.Unix() - timestamp
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(SignatureTolerance/time.Second)
}
