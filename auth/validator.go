// Package auth validates bearer tokens presented to the answering endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/upb/scifit-rag/middleware"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingSecret is returned when the validator has no signing secret
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// Claims are the fields read from a Supabase-style project token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// HMACValidator validates HS256 tokens signed with a shared project secret,
// such as Supabase anon and service-role keys.
type HMACValidator struct {
	secret []byte
	parser *jwt.Parser
}

// NewHMACValidator creates a validator for tokens signed with secret
func NewHMACValidator(secret string) *HMACValidator {
	return &HMACValidator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// ValidateToken validates a token and returns the claims the middleware stores in context
func (v *HMACValidator) ValidateToken(_ context.Context, tokenString string) (*middleware.Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return &middleware.Claims{
		Sub:  claims.Subject,
		Role: claims.Role,
		Iss:  claims.Issuer,
	}, nil
}

// SignToken issues an HS256 token; used by the CLI and tests to mint caller keys.
func SignToken(secret string, claims Claims) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
