package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tnqbao/gau-image-service/utils"
)

const (
	StorageProviderS3    = "s3"
	StorageProviderMinio = "minio"

	minUploadURLTTL = 10 * time.Second
	maxUploadURLTTL = 15 * time.Minute
)

type EnvConfig struct {
	AWS struct {
		Region string
	}
	Database struct {
		Name            string
		SecretParameter string // SSM parameter holding the secret location, not the secret
		SecretCacheTTL  time.Duration
		SSLMode         string
	}
	Storage struct {
		Provider     string
		Bucket       string
		Endpoint     string // S3-compatible endpoint override (LocalStack, MinIO)
		AccessKey    string
		SecretKey    string
		UseSSL       bool
		UploadURLTTL time.Duration
	}
	CDN struct {
		Domain string
	}
	Cognito struct {
		UserPoolID string
		ClientID   string
		Issuer     string
		JWKSURL    string
	}
	Gallery struct {
		PageSize    int
		MaxPageSize int
		CacheTTL    time.Duration
	}
	CORS struct {
		AllowDomains string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	CallbackSecret string

	Environment struct {
		Mode string
	}
	Port string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	config.AWS.Region = os.Getenv("AWS_REGION")

	config.Database.Name = os.Getenv("RDS_DB_NAME")
	config.Database.SecretParameter = os.Getenv("RDS_SECRET_PARAMETER")
	config.Database.SecretCacheTTL = secondsFromEnv("SECRET_CACHE_TTL_SECONDS", 900)
	config.Database.SSLMode = os.Getenv("RDS_SSL_MODE")
	if config.Database.SSLMode == "" {
		config.Database.SSLMode = "require"
	}

	config.Storage.Provider = strings.ToLower(os.Getenv("STORAGE_PROVIDER"))
	if config.Storage.Provider == "" {
		config.Storage.Provider = StorageProviderS3
	}
	config.Storage.Bucket = os.Getenv("S3_BUCKET_NAME")
	config.Storage.Endpoint = os.Getenv("S3_ENDPOINT")
	if config.Storage.Provider == StorageProviderMinio && os.Getenv("MINIO_ENDPOINT") != "" {
		config.Storage.Endpoint = os.Getenv("MINIO_ENDPOINT")
	}
	config.Storage.AccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	config.Storage.SecretKey = os.Getenv("STORAGE_SECRET_KEY")
	config.Storage.UseSSL, _ = strconv.ParseBool(os.Getenv("MINIO_USE_SSL"))
	config.Storage.UploadURLTTL = clampDuration(
		secondsFromEnv("UPLOAD_URL_TTL_SECONDS", 300), minUploadURLTTL, maxUploadURLTTL)

	config.CDN.Domain = normalizeDomain(os.Getenv("CLOUDFRONT_DOMAIN"))

	config.Cognito.UserPoolID = os.Getenv("COGNITO_USER_POOL_ID")
	config.Cognito.ClientID = os.Getenv("COGNITO_CLIENT_ID")
	config.Cognito.Issuer = os.Getenv("COGNITO_ISSUER")
	config.Cognito.JWKSURL = os.Getenv("JWKS_URL")

	config.Gallery.PageSize = intFromEnv("GALLERY_PAGE_SIZE", 20)
	config.Gallery.MaxPageSize = intFromEnv("GALLERY_MAX_PAGE_SIZE", 100)
	if config.Gallery.PageSize > config.Gallery.MaxPageSize {
		config.Gallery.PageSize = config.Gallery.MaxPageSize
	}
	config.Gallery.CacheTTL = secondsFromEnv("GALLERY_CACHE_TTL_SECONDS", 30)

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")
	if config.Redis.RedisPort == "" {
		config.Redis.RedisPort = "6379"
	}

	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}

	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	grafanaEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	grafanaEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	config.Grafana.OTLPEndpoint = grafanaEndpoint
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "image-service"
	}

	config.CallbackSecret = os.Getenv("CALLBACK_SECRET")

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8080"
	}

	return &config
}

// RequireDatabaseName returns the database name or a ConfigurationError.
func (c *EnvConfig) RequireDatabaseName() (string, error) {
	return require("RDS_DB_NAME", c.Database.Name)
}

func (c *EnvConfig) RequireBucket() (string, error) {
	return require("S3_BUCKET_NAME", c.Storage.Bucket)
}

func (c *EnvConfig) RequireCDNDomain() (string, error) {
	return require("CLOUDFRONT_DOMAIN", c.CDN.Domain)
}

func (c *EnvConfig) RequireCallbackSecret() (string, error) {
	return require("CALLBACK_SECRET", c.CallbackSecret)
}

// CognitoIssuer returns the expected "iss" claim, derived from region and
// user pool when not set explicitly.
func (c *EnvConfig) CognitoIssuer() (string, error) {
	if c.Cognito.Issuer != "" {
		return strings.TrimSuffix(c.Cognito.Issuer, "/"), nil
	}
	poolID, err := require("COGNITO_USER_POOL_ID", c.Cognito.UserPoolID)
	if err != nil {
		return "", err
	}
	region, err := require("AWS_REGION", c.AWS.Region)
	if err != nil {
		return "", err
	}
	return "https://cognito-idp." + region + ".amazonaws.com/" + poolID, nil
}

func (c *EnvConfig) CognitoJWKSURL() (string, error) {
	if c.Cognito.JWKSURL != "" {
		return c.Cognito.JWKSURL, nil
	}
	issuer, err := c.CognitoIssuer()
	if err != nil {
		return "", err
	}
	return issuer + "/.well-known/jwks.json", nil
}

func (c *EnvConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORS.AllowDomains, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func require(name, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", utils.NewConfigurationError(name+" is not configured", nil)
	}
	return value, nil
}

func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(domain, "/")
}

func secondsFromEnv(key string, def int) time.Duration {
	return time.Duration(intFromEnv(key, def)) * time.Second
}

func intFromEnv(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
