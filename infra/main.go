package infra

import (
	"context"
	"errors"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/infra/produce"
)

// Infra never fails on missing deployment configuration; the affected
// component reports a ConfigurationError when a request first needs it.
// Redis, RabbitMQ and Produce are nil when not configured.
type Infra struct {
	Logger      *LoggerClient
	Telemetry   *Telemetry
	Credentials *CredentialResolver
	Identity    *IdentityVerifier
	Postgres    *PostgresClient
	Storage     UploadIssuer
	Redis       *RedisClient
	RabbitMQ    *RabbitMQClient
	Produce     *produce.Produce
}

func InitInfra(cfg *config.Config) *Infra {
	ctx := context.Background()
	env := cfg.EnvConfig

	telemetry, err := InitTelemetry(ctx, env)
	if err != nil {
		log.Printf("Warning: telemetry disabled: %v", err)
		telemetry = &Telemetry{}
	}

	logger := InitLoggerClient(env.Grafana.ServiceName, telemetry.LogProvider())

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(env.AWS.Region))
	if err != nil {
		logger.WarningWithContextf(ctx, "[Infra] Failed to load AWS configuration: %v", err)
		awsCfg = aws.Config{Region: env.AWS.Region}
	}
	if env.Storage.AccessKey != "" && env.Storage.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(env.Storage.AccessKey, env.Storage.SecretKey, "")
	}

	resolver := InitCredentialResolver(env, awsCfg)

	storage, err := InitStorage(env, awsCfg, resolver)
	if err != nil {
		logger.ErrorWithContextf(ctx, err, "[Infra] Storage is unavailable: %v", err)
		storage = &unconfiguredStorage{err: err}
	}

	in := &Infra{
		Logger:      logger,
		Telemetry:   telemetry,
		Credentials: resolver,
		Identity:    InitIdentityVerifier(env),
		Postgres:    InitPostgresClient(env, resolver, logger),
		Storage:     storage,
		Redis:       InitRedisClient(env, logger),
	}

	rabbitMQ, err := InitRabbitMQClient(env)
	if err != nil {
		logger.ErrorWithContextf(ctx, err, "[Infra] RabbitMQ is unavailable, confirmation events disabled: %v", err)
	}
	if rabbitMQ != nil {
		produceService, err := produce.InitProduce(rabbitMQ.Channel)
		if err != nil {
			logger.ErrorWithContextf(ctx, err, "[Infra] Failed to initialize Produce service: %v", err)
			_ = rabbitMQ.Close()
		} else {
			in.RabbitMQ = rabbitMQ
			in.Produce = produceService
		}
	}

	return in
}

// Close releases connections and flushes telemetry.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	if i.RabbitMQ != nil {
		errs = append(errs, i.RabbitMQ.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.Postgres != nil {
		errs = append(errs, i.Postgres.Close())
	}
	if i.Telemetry != nil {
		errs = append(errs, i.Telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
