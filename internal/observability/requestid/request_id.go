package requestid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// NewRequestID generates a sortable request ID: a millisecond
// timestamp prefix keeps IDs roughly time-ordered in log searches,
// random bytes make them unique.
func NewRequestID() string {
	timestamp := time.Now().UnixMilli()

	randomBytes := make([]byte, 10)
	if _, err := rand.Read(randomBytes); err != nil {
		// Timestamp-only fallback; collisions are tolerable for tracing
		return fmt.Sprintf("req_%d", timestamp)
	}

	return fmt.Sprintf("req_%d_%s", timestamp, hex.EncodeToString(randomBytes))
}

// GetRequestID retrieves the request ID from context, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// SetRequestID stores a request ID in the context.
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}
