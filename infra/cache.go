package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tnqbao/gau-image-service/config"
)

const galleryVersionKey = "gallery:version"

type RedisClient struct {
	Client *redis.Client
}

// InitRedisClient returns nil when Redis is not configured or unreachable;
// the gallery then reads straight from the store.
func InitRedisClient(cfg *config.EnvConfig, logger *LoggerClient) *RedisClient {
	if cfg.Redis.RedisHost == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.RedisHost + ":" + cfg.Redis.RedisPort,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.Database,
		DialTimeout: externalCallTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WarningWithContextf(ctx, "[Redis] Connection to %s failed, gallery cache disabled: %v", client.Options().Addr, err)
		_ = client.Close()
		return nil
	}

	logger.InfoWithContextf(ctx, "[Redis] Connected to %s", client.Options().Addr)
	return &RedisClient{Client: client}
}

func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key, data, expiration).Err()
}

// Get decodes key into dest and reports whether the key was present.
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

// GalleryVersion is read once per request, before the store is queried, so
// a page is never cached under a version newer than its data.
func (r *RedisClient) GalleryVersion(ctx context.Context) (int64, error) {
	version, err := r.Client.Get(ctx, galleryVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return version, nil
}

func (r *RedisClient) GetGalleryPage(ctx context.Context, version int64, limit int, cursor string, dest interface{}) (bool, error) {
	return r.Get(ctx, GalleryCacheKey(version, limit, cursor), dest)
}

func (r *RedisClient) SetGalleryPage(ctx context.Context, version int64, limit int, cursor string, page interface{}, ttl time.Duration) error {
	return r.Set(ctx, GalleryCacheKey(version, limit, cursor), page, ttl)
}

// InvalidateGallery bumps the gallery version; pages cached under older
// versions are never read again and expire on their own.
func (r *RedisClient) InvalidateGallery(ctx context.Context) error {
	return r.Client.Incr(ctx, galleryVersionKey).Err()
}

func GalleryCacheKey(version int64, limit int, cursor string) string {
	return fmt.Sprintf("gallery:v%d:%d:%s", version, limit, cursor)
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}
