package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// KeyResolver routes a token to the validator registered for its
// issuer, then enforces the issuer allowlist and audience.
type KeyResolver struct {
	validators       map[string]TokenValidator
	allowedIssuers   map[string]bool
	allowedAudiences []string
}

func NewKeyResolver(allowedIssuers []string, allowedAudiences []string) *KeyResolver {
	issuersMap := make(map[string]bool, len(allowedIssuers))
	for _, issuer := range allowedIssuers {
		issuersMap[issuer] = true
	}
	return &KeyResolver{
		validators:       make(map[string]TokenValidator),
		allowedIssuers:   issuersMap,
		allowedAudiences: allowedAudiences,
	}
}

// RegisterValidator installs the validator for an issuer.
func (kr *KeyResolver) RegisterValidator(issuer string, validator TokenValidator) {
	kr.validators[issuer] = validator
}

// Resolve verifies a token end to end: peek at the unverified header
// to pick a validator, verify the signature and claims, then re-check
// the verified issuer and audience against what is allowed.
func (kr *KeyResolver) Resolve(_ context.Context, tokenString string) (*CustomClaims, error) {
	issuer, kid, err := peekHeader(tokenString)
	if err != nil {
		return nil, NewAuthError(AuthFailureUnknown, "failed to extract header info", err)
	}

	if !kr.allowedIssuers[issuer] {
		return nil, NewAuthError(AuthFailureInvalidIssuer, fmt.Sprintf("issuer not allowed: %s", issuer), nil)
	}

	validator, ok := kr.validators[issuer]
	if !ok {
		return nil, NewAuthError(AuthFailureInvalidIssuer, fmt.Sprintf("no validator found for issuer: %s", issuer), nil)
	}

	claims, err := validator.Validate(tokenString, kid)
	if err != nil {
		if authErr, ok := IsAuthError(err); ok {
			return nil, authErr
		}
		return nil, NewAuthError(AuthFailureUnknown, "token validation failed", err)
	}

	// The unverified issuer chose the key; the verified claim must agree
	if claims.Issuer != issuer {
		return nil, NewAuthError(AuthFailureInvalidIssuer, fmt.Sprintf("issuer mismatch: expected %s, got %s", issuer, claims.Issuer), nil)
	}

	if !kr.validAudience(claims.Audience) {
		return nil, NewAuthError(AuthFailureInvalidAudience, fmt.Sprintf("invalid audience: %v", claims.Audience), nil)
	}

	return claims, nil
}

// peekHeader reads issuer and kid from the token without verifying the
// signature. Nothing from here is trusted until Validate succeeds.
func peekHeader(tokenString string) (issuer, kid string, err error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("invalid token format")
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", fmt.Errorf("decode header: %w", err)
	}
	var header struct {
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return "", "", fmt.Errorf("unmarshal header: %w", err)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("decode payload: %w", err)
	}
	var payload struct {
		Issuer string `json:"iss"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return "", "", fmt.Errorf("unmarshal payload: %w", err)
	}

	kid = header.Kid
	if kid == "" {
		// Tokens minted before key rotation carry no kid
		kid = "v1"
	}
	return payload.Issuer, kid, nil
}

func (kr *KeyResolver) validAudience(audiences []string) bool {
	for _, aud := range audiences {
		for _, allowed := range kr.allowedAudiences {
			if aud == allowed {
				return true
			}
		}
	}
	return false
}
