package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/scoreapp/score/internal/config"
)

// TokenVerifier validates a bearer token and returns its claims
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
}

// Claims is what the API needs to know about a caller.
type Claims struct {
	UserID string
	Issuer string
}

var ErrInvalidToken = errors.New("invalid token")

// NewVerifier builds the verifier selected by cfg. It returns nil when auth
// is disabled. JWKS verification is used when an issuer or JWKS URL is set,
// otherwise tokens are checked against the shared secret.
func NewVerifier(ctx context.Context, cfg *config.JWTConfig) (TokenVerifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Issuer != "" || cfg.JWKSURL != "" {
		v, err := NewJWKSVerifier(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS verifier: %w", err)
		}
		return v, nil
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required when auth is enabled")
	}
	return NewHMACVerifier(cfg.Secret), nil
}
