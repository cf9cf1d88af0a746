package utils

import (
	"context"

	"github.com/tnqbao/gau-image-service/entity"
)

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying the verified identity.
func WithIdentity(ctx context.Context, identity *entity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the verified identity attached by the auth
// middleware, if any.
func IdentityFromContext(ctx context.Context) (*entity.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*entity.Identity)
	return identity, ok && identity != nil && identity.Subject != ""
}
