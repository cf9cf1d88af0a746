package infra

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/utils"
)

type MinioStorage struct {
	Client   *minio.Client
	Endpoint string
	bucket   string
	now      func() time.Time
}

func NewMinioStorage(cfg *config.EnvConfig, bucket string) (*MinioStorage, error) {
	endpoint := cfg.Storage.Endpoint
	if endpoint == "" {
		return nil, utils.NewConfigurationError("MINIO_ENDPOINT is not configured", nil)
	}
	if cfg.Storage.AccessKey == "" || cfg.Storage.SecretKey == "" {
		return nil, utils.NewConfigurationError("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required for MinIO", nil)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
		Region: cfg.AWS.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	return &MinioStorage{
		Client:   client,
		Endpoint: endpoint,
		bucket:   bucket,
		now:      time.Now,
	}, nil
}

func (m *MinioStorage) IssueUploadTarget(ctx context.Context, key string, ttl time.Duration, contentType string) (*entity.UploadTarget, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	var headers http.Header
	if contentType != "" {
		headers = http.Header{"Content-Type": []string{contentType}}
	}

	u, err := m.Client.PresignHeader(ctx, http.MethodPut, m.bucket, key, ttl, nil, headers)
	if err != nil {
		return nil, utils.NewCredentialError("failed to presign upload", err)
	}

	return &entity.UploadTarget{
		URL:       u.String(),
		Method:    http.MethodPut,
		Headers:   flattenSignedHeaders(headers),
		Key:       key,
		ExpiresAt: m.now().Add(ttl).UTC(),
	}, nil
}

func (m *MinioStorage) ObjectExists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	_, err := m.Client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return false, nil
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return false, utils.NewCredentialError("storage denied access", err)
	}
	return false, fmt.Errorf("failed to stat object %s: %w", key, err)
}
