package infra

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/entity"
)

// UploadIssuer hands out pre-authorized single-object uploads and checks
// whether an upload has landed.
type UploadIssuer interface {
	IssueUploadTarget(ctx context.Context, key string, ttl time.Duration, contentType string) (*entity.UploadTarget, error)
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// StorageCredentialInvalidator is notified when storage rejects the signing
// credential so the next request re-resolves it.
type StorageCredentialInvalidator interface {
	InvalidateStorageCredentials()
}

// InitStorage selects the issuer for STORAGE_PROVIDER. A missing bucket
// yields an issuer that fails every call with a ConfigurationError.
func InitStorage(cfg *config.EnvConfig, awsCfg aws.Config, credentials *CredentialResolver) (UploadIssuer, error) {
	bucket, err := cfg.RequireBucket()
	if err != nil {
		return &unconfiguredStorage{err: err}, nil
	}

	switch cfg.Storage.Provider {
	case config.StorageProviderMinio:
		return NewMinioStorage(cfg, bucket)
	default:
		return NewS3Storage(awsCfg, cfg.Storage.Endpoint, bucket, credentials), nil
	}
}

type unconfiguredStorage struct {
	err error
}

func (s *unconfiguredStorage) IssueUploadTarget(context.Context, string, time.Duration, string) (*entity.UploadTarget, error) {
	return nil, s.err
}

func (s *unconfiguredStorage) ObjectExists(context.Context, string) (bool, error) {
	return false, s.err
}
