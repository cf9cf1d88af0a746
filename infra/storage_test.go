package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/utils"
)

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) InvalidateStorageCredentials() { c.calls.Add(1) }

// objectServer answers HEAD requests: 200 for present keys, 403 for denied
// keys, 404 otherwise.
func objectServer(t *testing.T, present, denied string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, present):
			w.Header().Set("Content-Length", "0")
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.Header().Set("Last-Modified", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, denied):
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testAWSConfig() aws.Config {
	return aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
}

func TestS3StorageIssueUploadTarget(t *testing.T) {
	t.Parallel()

	storage := NewS3Storage(testAWSConfig(), "http://localhost:4566", "gallery-bucket", nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	storage.now = func() time.Time { return fixed }

	target, err := storage.IssueUploadTarget(context.Background(), "images/abc", 2*time.Minute, "image/png")
	if err != nil {
		t.Fatalf("IssueUploadTarget() error = %v", err)
	}
	if target.Method != http.MethodPut {
		t.Errorf("Method = %q, want PUT", target.Method)
	}
	if target.Key != "images/abc" {
		t.Errorf("Key = %q", target.Key)
	}
	if !target.ExpiresAt.Equal(fixed.Add(2 * time.Minute)) {
		t.Errorf("ExpiresAt = %v", target.ExpiresAt)
	}

	u, err := url.Parse(target.URL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if u.Path != "/gallery-bucket/images/abc" {
		t.Errorf("presigned path = %q, want the single object", u.Path)
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "120" {
		t.Errorf("X-Amz-Expires = %q, want 120", got)
	}
	if !strings.Contains(u.Query().Get("X-Amz-SignedHeaders"), "content-type") {
		t.Errorf("content-type should be signed, got %q", u.Query().Get("X-Amz-SignedHeaders"))
	}
	if target.Headers["Content-Type"] != "image/png" {
		t.Errorf("Headers = %v, want Content-Type to replay", target.Headers)
	}
	if _, ok := target.Headers["Host"]; ok {
		t.Error("Host must not be returned as a replay header")
	}
}

func TestS3StorageIssueUploadTargetWithoutContentType(t *testing.T) {
	t.Parallel()

	storage := NewS3Storage(testAWSConfig(), "http://localhost:4566", "gallery-bucket", nil)
	target, err := storage.IssueUploadTarget(context.Background(), "images/abc", time.Minute, "")
	if err != nil {
		t.Fatalf("IssueUploadTarget() error = %v", err)
	}
	u, err := url.Parse(target.URL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if got := u.Query().Get("X-Amz-SignedHeaders"); got != "host" {
		t.Errorf("X-Amz-SignedHeaders = %q, want host only", got)
	}
	if _, ok := target.Headers["Content-Type"]; ok {
		t.Errorf("Headers = %v, want no Content-Type when none was requested", target.Headers)
	}
}

func TestS3StorageObjectExists(t *testing.T) {
	t.Parallel()

	srv := objectServer(t, "images/present", "images/denied")
	storage := NewS3Storage(testAWSConfig(), srv.URL, "gallery-bucket", nil)
	invalidator := &countingInvalidator{}
	storage.credentials = invalidator

	ok, err := storage.ObjectExists(context.Background(), "images/present")
	if err != nil || !ok {
		t.Errorf("present object: ok=%v err=%v", ok, err)
	}

	ok, err = storage.ObjectExists(context.Background(), "images/missing")
	if err != nil || ok {
		t.Errorf("missing object: ok=%v err=%v", ok, err)
	}

	_, err = storage.ObjectExists(context.Background(), "images/denied")
	if got := utils.KindOf(err); got != utils.KindCredential {
		t.Errorf("denied object kind = %v, want Credential (err: %v)", got, err)
	}
	if invalidator.calls.Load() != 1 {
		t.Errorf("credential invalidations = %d, want 1", invalidator.calls.Load())
	}
}

func TestMinioStorage(t *testing.T) {
	t.Parallel()

	srv := objectServer(t, "images/present", "images/denied")
	cfg := &config.EnvConfig{}
	cfg.AWS.Region = "us-east-1"
	cfg.Storage.Endpoint = strings.TrimPrefix(srv.URL, "http://")
	cfg.Storage.AccessKey = "minio"
	cfg.Storage.SecretKey = "minio-secret"

	storage, err := NewMinioStorage(cfg, "gallery-bucket")
	if err != nil {
		t.Fatalf("NewMinioStorage() error = %v", err)
	}

	target, err := storage.IssueUploadTarget(context.Background(), "images/abc", time.Minute, "")
	if err != nil {
		t.Fatalf("IssueUploadTarget() error = %v", err)
	}
	if !strings.Contains(target.URL, "/gallery-bucket/images/abc?") {
		t.Errorf("URL = %q, want the single object", target.URL)
	}
	if target.Headers != nil {
		t.Errorf("Headers = %v, want none without content type", target.Headers)
	}

	typed, err := storage.IssueUploadTarget(context.Background(), "images/abc", time.Minute, "image/webp")
	if err != nil {
		t.Fatalf("IssueUploadTarget() with content type error = %v", err)
	}
	typedURL, err := url.Parse(typed.URL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if got := typedURL.Query().Get("X-Amz-SignedHeaders"); !strings.Contains(got, "content-type") {
		t.Errorf("X-Amz-SignedHeaders = %q, want content-type signed", got)
	}
	if typed.Headers["Content-Type"] != "image/webp" {
		t.Errorf("Headers = %v, want Content-Type to replay", typed.Headers)
	}

	if ok, err := storage.ObjectExists(context.Background(), "images/present"); err != nil || !ok {
		t.Errorf("present object: ok=%v err=%v", ok, err)
	}
	if ok, err := storage.ObjectExists(context.Background(), "images/missing"); err != nil || ok {
		t.Errorf("missing object: ok=%v err=%v", ok, err)
	}
	if _, err := storage.ObjectExists(context.Background(), "images/denied"); utils.KindOf(err) != utils.KindCredential {
		t.Errorf("denied object err = %v, want CredentialError", err)
	}
}

func TestMinioStorageRequiresCredentials(t *testing.T) {
	t.Parallel()

	cfg := &config.EnvConfig{}
	cfg.Storage.Endpoint = "localhost:9000"
	if _, err := NewMinioStorage(cfg, "b"); utils.KindOf(err) != utils.KindConfiguration {
		t.Errorf("err = %v, want ConfigurationError", err)
	}
}

func TestInitStorageWithoutBucket(t *testing.T) {
	t.Parallel()

	issuer, err := InitStorage(&config.EnvConfig{}, testAWSConfig(), nil)
	if err != nil {
		t.Fatalf("InitStorage() error = %v", err)
	}
	_, err = issuer.IssueUploadTarget(context.Background(), "images/x", time.Minute, "")
	if utils.KindOf(err) != utils.KindConfiguration {
		t.Errorf("err = %v, want ConfigurationError", err)
	}
}
