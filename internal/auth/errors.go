package auth

import "errors"

// AuthFailureReason buckets authentication failures for structured
// logging; reasons never reach clients, who always see a generic 401.
type AuthFailureReason string

const (
	AuthFailureMissingAuthorization AuthFailureReason = "missing_authorization"
	AuthFailureInvalidScheme        AuthFailureReason = "invalid_scheme"
	AuthFailureInvalidSignature     AuthFailureReason = "invalid_signature"
	AuthFailureInvalidIssuer        AuthFailureReason = "invalid_issuer"
	AuthFailureInvalidAudience      AuthFailureReason = "invalid_audience"
	AuthFailureTokenExpired         AuthFailureReason = "token_expired"
	AuthFailureWorkspaceMismatch    AuthFailureReason = "workspace_mismatch"
	AuthFailureUnknown              AuthFailureReason = "unknown"
)

// AuthError carries a failure reason alongside the underlying cause.
type AuthError struct {
	Reason  AuthFailureReason
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func NewAuthError(reason AuthFailureReason, message string, err error) *AuthError {
	return &AuthError{
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// IsAuthError unwraps err into an AuthError when one is present.
func IsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// maskToken truncates a token so log lines never contain usable
// credentials.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:12] + "..."
}
