package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tnqbao/gau-image-service/config"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/utils"
)

const (
	// DefaultKeyRefreshInterval bounds refetches triggered by unknown key ids.
	DefaultKeyRefreshInterval = 5 * time.Minute

	maxJWKSBytes = 1 << 20
)

var errUnknownSigningKey = errors.New("signing key not found")

type signingKeys struct {
	keys map[string]interface{}
}

// IdentityVerifier validates bearer tokens issued by the Cognito user pool
// against its published signing keys. Keys are fetched once and refetched
// only when a token names an unknown key, at most once per refresh interval.
type IdentityVerifier struct {
	jwksURL         string
	issuer          string
	clientID        string
	httpClient      *http.Client
	refreshInterval time.Duration
	now             func() time.Time
	configErr       error

	keys        atomic.Pointer[signingKeys]
	mu          sync.Mutex
	lastFetchAt time.Time
}

func NewIdentityVerifier(jwksURL, issuer, clientID string, httpClient *http.Client) *IdentityVerifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: externalCallTimeout}
	}
	return &IdentityVerifier{
		jwksURL:         jwksURL,
		issuer:          issuer,
		clientID:        clientID,
		httpClient:      httpClient,
		refreshInterval: DefaultKeyRefreshInterval,
		now:             time.Now,
	}
}

// InitIdentityVerifier never fails: missing Cognito configuration surfaces
// as a ConfigurationError on the first Verify call.
func InitIdentityVerifier(cfg *config.EnvConfig) *IdentityVerifier {
	issuer, err := cfg.CognitoIssuer()
	if err != nil {
		return &IdentityVerifier{configErr: err}
	}
	jwksURL, err := cfg.CognitoJWKSURL()
	if err != nil {
		return &IdentityVerifier{configErr: err}
	}
	return NewIdentityVerifier(jwksURL, issuer, cfg.Cognito.ClientID, nil)
}

// Verify checks the token signature, issuer, expiry and audience and returns
// the caller identity.
func (v *IdentityVerifier) Verify(ctx context.Context, tokenStr string) (*entity.Identity, error) {
	if v.configErr != nil {
		return nil, v.configErr
	}
	if tokenStr == "" {
		return nil, utils.NewUnauthenticatedError("authorization token is required", nil)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no key id")
		}
		return v.signingKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, utils.NewUnauthenticatedError("invalid or expired token", err)
	}
	if !token.Valid {
		return nil, utils.NewUnauthenticatedError("invalid or expired token", nil)
	}

	identity, err := identityFromClaims(claims, v.clientID)
	if err != nil {
		return nil, utils.NewUnauthenticatedError("invalid token claims", err)
	}
	return identity, nil
}

func identityFromClaims(claims jwt.MapClaims, clientID string) (*entity.Identity, error) {
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, errors.New("missing subject")
	}

	tokenUse, _ := claims["token_use"].(string)
	switch tokenUse {
	case "id":
		if clientID != "" {
			aud, err := claims.GetAudience()
			if err != nil || !containsString(aud, clientID) {
				return nil, errors.New("audience mismatch")
			}
		}
	case "access":
		if clientID != "" {
			if cid, _ := claims["client_id"].(string); cid != clientID {
				return nil, errors.New("client id mismatch")
			}
		}
	default:
		return nil, fmt.Errorf("unexpected token_use %q", tokenUse)
	}

	identity := &entity.Identity{
		Subject:  subject,
		TokenUse: tokenUse,
		Claims:   claims,
	}
	if username, ok := claims["cognito:username"].(string); ok {
		identity.Username = username
	} else if username, ok := claims["username"].(string); ok {
		identity.Username = username
	}
	identity.Email, _ = claims["email"].(string)
	return identity, nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func (v *IdentityVerifier) signingKey(ctx context.Context, kid string) (interface{}, error) {
	if set := v.keys.Load(); set != nil {
		if key, ok := set.keys[kid]; ok {
			return key, nil
		}
	}
	if err := v.refresh(ctx, kid); err != nil {
		return nil, err
	}
	if set := v.keys.Load(); set != nil {
		if key, ok := set.keys[kid]; ok {
			return key, nil
		}
	}
	return nil, errUnknownSigningKey
}

// refresh fetches the key set unless another caller already made kid
// available or a refetch happened within the refresh interval.
func (v *IdentityVerifier) refresh(ctx context.Context, kid string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	set := v.keys.Load()
	if set != nil {
		if _, ok := set.keys[kid]; ok {
			return nil
		}
		if v.now().Sub(v.lastFetchAt) < v.refreshInterval {
			return errUnknownSigningKey
		}
	}

	keys, err := v.fetch(ctx)
	v.lastFetchAt = v.now()
	if err != nil {
		return utils.NewCredentialError("failed to fetch identity provider signing keys", err)
	}
	v.keys.Store(&signingKeys{keys: keys})
	return nil
}

func (v *IdentityVerifier) fetch(ctx context.Context) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity provider returned %d: %s", resp.StatusCode, string(raw))
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}

	keys := make(map[string]interface{}, len(set.Keys))
	for _, k := range set.Keys {
		if k.KeyID == "" || (k.Use != "" && k.Use != "sig") || !k.IsPublic() {
			continue
		}
		keys[k.KeyID] = k.Key
	}
	if len(keys) == 0 {
		return nil, errors.New("key set contains no usable signing keys")
	}
	return keys, nil
}
