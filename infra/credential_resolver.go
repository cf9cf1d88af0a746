package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/utils"
)

const externalCallTimeout = 5 * time.Second

// ParameterStore resolves a pointer parameter to the location of a secret.
type ParameterStore interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// SecretStore fetches the raw contents of a secret by location.
type SecretStore interface {
	GetSecret(ctx context.Context, location string) (string, error)
}

// ErrParameterNotFound is returned by a ParameterStore when the name is absent.
var ErrParameterNotFound = errors.New("parameter not found")

// DatabaseSecret is the RDS-style credentials document.
type DatabaseSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"-"`
	DBName   string `json:"dbname"`
}

func (s *DatabaseSecret) UnmarshalJSON(data []byte) error {
	type alias DatabaseSecret
	aux := struct {
		*alias
		Port json.RawMessage `json:"port"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Port) == 0 {
		return nil
	}
	raw := strings.Trim(string(aux.Port), `"`)
	port, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid port %q", raw)
	}
	s.Port = port
	return nil
}

func (s *DatabaseSecret) validate() error {
	if s.Username == "" || s.Password == "" || s.Host == "" {
		return errors.New("secret is missing username, password or host")
	}
	return nil
}

type cachedSecret struct {
	secret    DatabaseSecret
	expiresAt time.Time
}

// CredentialResolver resolves the database secret in two phases (pointer
// parameter, then secret) and caches it for its validity window. It also
// owns the object-storage session credential cache.
type CredentialResolver struct {
	parameterName string
	parameters    ParameterStore
	secrets       SecretStore
	ttl           time.Duration
	now           func() time.Time

	cached atomic.Pointer[cachedSecret]
	mu     sync.Mutex

	storageCredentials *aws.CredentialsCache
}

func NewCredentialResolver(parameterName string, parameters ParameterStore, secrets SecretStore, ttl time.Duration) *CredentialResolver {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CredentialResolver{
		parameterName: parameterName,
		parameters:    parameters,
		secrets:       secrets,
		ttl:           ttl,
		now:           time.Now,
	}
}

// InitCredentialResolver wires the resolver to SSM and Secrets Manager.
func InitCredentialResolver(cfg *config.EnvConfig, awsCfg aws.Config) *CredentialResolver {
	resolver := NewCredentialResolver(
		cfg.Database.SecretParameter,
		&SSMParameterStore{Client: ssm.NewFromConfig(awsCfg)},
		&SecretsManagerStore{Client: secretsmanager.NewFromConfig(awsCfg)},
		cfg.Database.SecretCacheTTL,
	)
	resolver.SetStorageCredentials(awsCfg.Credentials)
	return resolver
}

// DatabaseSecret returns the cached secret while it is valid and resolves it
// again otherwise. Concurrent callers share one resolution.
func (r *CredentialResolver) DatabaseSecret(ctx context.Context) (DatabaseSecret, error) {
	if c := r.cached.Load(); c != nil && r.now().Before(c.expiresAt) {
		return c.secret, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.cached.Load(); c != nil && r.now().Before(c.expiresAt) {
		return c.secret, nil
	}

	secret, err := r.resolve(ctx)
	if err != nil {
		return DatabaseSecret{}, err
	}
	r.cached.Store(&cachedSecret{secret: secret, expiresAt: r.now().Add(r.ttl)})
	return secret, nil
}

// InvalidateDatabaseSecret forces the next DatabaseSecret call to resolve
// both phases again, e.g. after the database rejected the credentials.
func (r *CredentialResolver) InvalidateDatabaseSecret() {
	r.cached.Store(nil)
}

func (r *CredentialResolver) resolve(ctx context.Context) (DatabaseSecret, error) {
	if strings.TrimSpace(r.parameterName) == "" {
		return DatabaseSecret{}, utils.NewConfigurationError("RDS_SECRET_PARAMETER is not configured", nil)
	}

	paramCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	location, err := r.parameters.GetParameter(paramCtx, r.parameterName)
	cancel()
	if err != nil {
		if errors.Is(err, ErrParameterNotFound) {
			return DatabaseSecret{}, utils.NewConfigurationError("database secret pointer parameter is absent", err)
		}
		return DatabaseSecret{}, utils.NewCredentialError("failed to read database secret pointer", err)
	}
	if strings.TrimSpace(location) == "" {
		return DatabaseSecret{}, utils.NewConfigurationError("database secret pointer parameter is empty", nil)
	}

	secretCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	raw, err := r.secrets.GetSecret(secretCtx, location)
	cancel()
	if err != nil {
		return DatabaseSecret{}, utils.NewCredentialError("failed to fetch database secret", err)
	}

	var secret DatabaseSecret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return DatabaseSecret{}, utils.NewCredentialError("database secret is malformed", err)
	}
	if err := secret.validate(); err != nil {
		return DatabaseSecret{}, utils.NewCredentialError("database secret is malformed", err)
	}
	if secret.Port == 0 {
		secret.Port = 5432
	}
	return secret, nil
}

// SetStorageCredentials installs the provider behind the storage session
// credential cache.
func (r *CredentialResolver) SetStorageCredentials(provider aws.CredentialsProvider) {
	if provider == nil {
		return
	}
	if c, ok := provider.(*aws.CredentialsCache); ok {
		r.storageCredentials = c
		return
	}
	r.storageCredentials = aws.NewCredentialsCache(provider)
}

// StorageCredentials is the cached provider used to sign storage requests.
// It refreshes on its own at expiry.
func (r *CredentialResolver) StorageCredentials() aws.CredentialsProvider {
	if r.storageCredentials == nil {
		return nil
	}
	return r.storageCredentials
}

// InvalidateStorageCredentials drops the session credential after storage
// rejected it.
func (r *CredentialResolver) InvalidateStorageCredentials() {
	if r.storageCredentials != nil {
		r.storageCredentials.Invalidate()
	}
}

type SSMParameterStore struct {
	Client *ssm.Client
}

func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := s.Client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
		}
		return "", err
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
	}
	return aws.ToString(out.Parameter.Value), nil
}

type SecretsManagerStore struct {
	Client *secretsmanager.Client
}

func (s *SecretsManagerStore) GetSecret(ctx context.Context, location string) (string, error) {
	out, err := s.Client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(location),
	})
	if err != nil {
		return "", err
	}
	if out.SecretString == nil {
		return "", errors.New("secret has no string value")
	}
	return *out.SecretString, nil
}
