package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const hmacIssuer = "score-api"

type hmacClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// HMACVerifier checks HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &hmacClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*hmacClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return &Claims{UserID: userID, Issuer: claims.Issuer}, nil
}

// Sign issues a token for userID. Used by tests and local tooling.
func (v *HMACVerifier) Sign(userID string) (string, error) {
	claims := hmacClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: hmacIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
