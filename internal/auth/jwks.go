package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/scoreapp/score/internal/config"
)

type oidcClaims struct {
	jwt.RegisteredClaims
}

// JWKSVerifier checks asymmetric tokens against a remote key set.
type JWKSVerifier struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	audience string
}

// NewJWKSVerifier fetches the key set named by cfg.JWKSURL, or discovers it
// from the issuer's OIDC configuration. The set is refreshed in the
// background until ctx is done.
func NewJWKSVerifier(ctx context.Context, cfg *config.JWTConfig) (*JWKSVerifier, error) {
	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		discoverCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		var err error
		jwksURL, err = discoverJWKSURL(discoverCtx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to discover JWKS URL: %w", err)
		}
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}
	return newJWKSVerifier(jwks, cfg.Issuer, cfg.Audience), nil
}

func newJWKSVerifier(jwks keyfunc.Keyfunc, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{jwks: jwks, issuer: issuer, audience: audience}
}

func discoverJWKSURL(ctx context.Context, issuer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("jwks_uri not found in discovery document")
	}
	return doc.JWKSURI, nil
}

func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &oidcClaims{}, v.jwks.Keyfunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*oidcClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, v.audience) {
			return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
		}
	}

	return &Claims{UserID: claims.Subject, Issuer: claims.Issuer}, nil
}
