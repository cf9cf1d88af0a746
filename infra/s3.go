package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/utils"
)

// S3 error codes that mean the signing credential is no longer accepted.
var deniedCodes = map[string]bool{
	"AccessDenied":          true,
	"Forbidden":             true,
	"ExpiredToken":          true,
	"InvalidAccessKeyId":    true,
	"InvalidToken":          true,
	"SignatureDoesNotMatch": true,
}

type S3Storage struct {
	Client      *s3.Client
	presigner   *s3.PresignClient
	bucket      string
	credentials StorageCredentialInvalidator
	now         func() time.Time
}

// NewS3Storage signs with the resolver's cached session credential. A non
// empty endpoint switches to path-style addressing for LocalStack and other
// S3-compatible stores.
func NewS3Storage(awsCfg aws.Config, endpoint, bucket string, credentials *CredentialResolver) *S3Storage {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if credentials != nil {
			if provider := credentials.StorageCredentials(); provider != nil {
				o.Credentials = provider
			}
		}
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	storage := &S3Storage{
		Client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		now:       time.Now,
	}
	if credentials != nil {
		storage.credentials = credentials
	}
	return storage
}

// IssueUploadTarget presigns a PUT for exactly key. When contentType is set
// it is part of the signature and the uploader must send it unchanged.
func (s *S3Storage) IssueUploadTarget(ctx context.Context, key string, ttl time.Duration, contentType string) (*entity.UploadTarget, error) {
	ctx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	opts := []func(*s3.PresignOptions){s3.WithPresignExpires(ttl)}
	if contentType != "" {
		opts = append(opts, s3.WithPresignClientFromClientOptions(func(o *s3.Options) {
			o.APIOptions = append(o.APIOptions, signContentType(contentType))
		}))
	}

	req, err := s.presigner.PresignPutObject(ctx, input, opts...)
	if err != nil {
		s.invalidateCredentials()
		return nil, utils.NewCredentialError("failed to presign upload", err)
	}

	return &entity.UploadTarget{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   flattenSignedHeaders(req.SignedHeader),
		Key:       key,
		ExpiresAt: s.now().Add(ttl).UTC(),
	}, nil
}

// signContentType restores Content-Type on the presign request. The PutObject
// presigner strips it from bodiless requests, which leaves it out of
// X-Amz-SignedHeaders. Build runs before the Finalize step that signs.
func signContentType(contentType string) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("SignContentType",
			func(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (middleware.BuildOutput, middleware.Metadata, error) {
				if req, ok := in.Request.(*smithyhttp.Request); ok {
					req.Header.Set("Content-Type", contentType)
				}
				return next.HandleBuild(ctx, in)
			}), middleware.After)
	}
}

func (s *S3Storage) ObjectExists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	_, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey":
			return false, nil
		case deniedCodes[apiErr.ErrorCode()]:
			s.invalidateCredentials()
			return false, utils.NewCredentialError("storage denied access", err)
		}
	}
	return false, fmt.Errorf("failed to head object %s: %w", key, err)
}

func (s *S3Storage) invalidateCredentials() {
	if s.credentials != nil {
		s.credentials.InvalidateStorageCredentials()
	}
}

// flattenSignedHeaders keeps the headers the uploader has to replay, with
// canonical names; the signer reports them lowercased. Host is set by the
// HTTP client from the URL.
func flattenSignedHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for name, values := range h {
		if strings.EqualFold(name, "Host") || len(values) == 0 {
			continue
		}
		out[http.CanonicalHeaderKey(name)] = strings.Join(values, ",")
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
