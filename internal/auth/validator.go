package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	Validate(tokenString string, kid string) (*CustomClaims, error)
}

// HS256Validator verifies HS256 tokens against the secrets registered
// for a single issuer.
type HS256Validator struct {
	keyStore  *KeyStore
	issuer    string
	clockSkew time.Duration
}

func NewHS256Validator(keyStore *KeyStore, issuer string, clockSkew time.Duration) *HS256Validator {
	return &HS256Validator{
		keyStore:  keyStore,
		issuer:    issuer,
		clockSkew: clockSkew,
	}
}

// Validate parses and verifies the token, then checks the custom
// claims the API relies on.
func (v *HS256Validator) Validate(tokenString string, kid string) (*CustomClaims, error) {
	secret, ok := v.keyStore.GetHS256Key(v.issuer, kid)
	if !ok {
		return nil, fmt.Errorf("key not found for issuer %s and kid %s", v.issuer, kid)
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithLeeway(v.clockSkew))
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, NewAuthError(AuthFailureUnknown, fmt.Sprintf("invalid token: valid=%v", token.Valid), nil)
	}

	if err := claims.Validate(); err != nil {
		return nil, NewAuthError(AuthFailureUnknown, "invalid claims", err)
	}

	return claims, nil
}

// classifyParseError maps jwt library errors onto AuthError reasons so
// middleware can log failures by category without string matching.
func classifyParseError(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return NewAuthError(AuthFailureTokenExpired, "token expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return NewAuthError(AuthFailureInvalidSignature, "invalid signature", err)
	default:
		return NewAuthError(AuthFailureUnknown, "failed to parse token", err)
	}
}
