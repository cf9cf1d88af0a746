package infra

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/utils"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// invalidPasswordCode is the SQLSTATE postgres returns for rejected credentials.
const invalidPasswordCode = "28P01"

// DatabaseSecretSource is satisfied by CredentialResolver.
type DatabaseSecretSource interface {
	DatabaseSecret(ctx context.Context) (DatabaseSecret, error)
	InvalidateDatabaseSecret()
}

// PostgresClient opens its connection on first use, with credentials taken
// from the resolved database secret. When postgres rejects the credentials
// the secret is invalidated and the next call reconnects with a fresh one.
type PostgresClient struct {
	cfg     *config.EnvConfig
	secrets DatabaseSecretSource
	logger  *LoggerClient

	connects singleflight.Group

	mu sync.Mutex
	db *gorm.DB
}

func InitPostgresClient(cfg *config.EnvConfig, secrets DatabaseSecretSource, logger *LoggerClient) *PostgresClient {
	return &PostgresClient{
		cfg:     cfg,
		secrets: secrets,
		logger:  logger,
	}
}

// DB returns the shared connection pool, connecting if needed. Concurrent
// callers share one connect attempt and each stops waiting when its own ctx
// is done; the attempt itself keeps running on a context without cancel.
func (p *PostgresClient) DB(ctx context.Context) (*gorm.DB, error) {
	if db := p.current(); db != nil {
		return db.WithContext(ctx), nil
	}

	ch := p.connects.DoChan("connect", func() (interface{}, error) {
		if db := p.current(); db != nil {
			return db, nil
		}
		return p.connect(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB).WithContext(ctx), nil
	case <-ctx.Done():
		return nil, utils.NewPersistenceError("gave up waiting for database connection", ctx.Err())
	}
}

func (p *PostgresClient) current() *gorm.DB {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db
}

func (p *PostgresClient) connect(ctx context.Context) (*gorm.DB, error) {
	dbName, err := p.cfg.RequireDatabaseName()
	if err != nil {
		return nil, err
	}
	secret, err := p.secrets.DatabaseSecret(ctx)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(BuildPostgresDSN(secret, dbName, p.cfg.Database.SSLMode)), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Warn),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, p.connectError(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, utils.NewPersistenceError("failed to access connection pool", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, p.connectError(err)
	}

	if err := db.WithContext(pingCtx).AutoMigrate(&entity.Image{}); err != nil {
		_ = sqlDB.Close()
		return nil, utils.NewPersistenceError("failed to migrate images table", err)
	}

	p.logger.InfoWithContextf(ctx, "[Postgres] Connected to %s:%d/%s", secret.Host, secret.Port, dbName)
	p.mu.Lock()
	p.db = db
	p.mu.Unlock()
	return db, nil
}

// HandleError drops the connection and the cached secret when err shows the
// database rejected our credentials. Other errors are left alone.
func (p *PostgresClient) HandleError(err error) {
	if !IsAuthFailure(err) {
		return
	}
	p.secrets.InvalidateDatabaseSecret()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		if sqlDB, dbErr := p.db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		p.db = nil
	}
}

func (p *PostgresClient) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	p.db = nil
	return sqlDB.Close()
}

func (p *PostgresClient) connectError(err error) error {
	if IsAuthFailure(err) {
		p.secrets.InvalidateDatabaseSecret()
		return utils.NewCredentialError("database rejected the resolved credentials", err)
	}
	return utils.NewPersistenceError("failed to connect to database", err)
}

// IsAuthFailure reports whether err carries postgres SQLSTATE 28P01.
func IsAuthFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidPasswordCode
}

// BuildPostgresDSN renders a URL-style DSN; dbName overrides the secret's.
func BuildPostgresDSN(secret DatabaseSecret, dbName, sslMode string) string {
	if dbName == "" {
		dbName = secret.DBName
	}
	if sslMode == "" {
		sslMode = "require"
	}
	port := secret.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(secret.Username, secret.Password),
		Host:     secret.Host + ":" + strconv.Itoa(port),
		Path:     "/" + dbName,
		RawQuery: fmt.Sprintf("sslmode=%s&TimeZone=UTC", url.QueryEscape(sslMode)),
	}
	return u.String()
}
