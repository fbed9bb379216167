package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo stores responses of mutation requests keyed by the
// client-supplied Idempotency-Key header, so retried requests replay
// the original response instead of re-executing.
type IdempotencyRepo struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo
func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// CachedResponse is a previously stored response for an idempotent
// request.
type CachedResponse struct {
	Status  int
	Body    json.RawMessage
	Headers map[string]string
}

// HashKey hashes the raw idempotency key; only the hash is persisted.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Lookup returns the cached response for a key, or nil when the key is
// unknown or expired.
func (r *IdempotencyRepo) Lookup(ctx context.Context, workspaceID, keyHash string) (*CachedResponse, error) {
	query := `
		SELECT response_status, response_body, response_headers
		FROM idempotency_keys
		WHERE workspace_id = $1 AND key_hash = $2 AND expires_at > now()
	`

	var (
		status      int
		body        json.RawMessage
		headersJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, workspaceID, keyHash).Scan(&status, &body, &headersJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}

	var headers map[string]string
	if headersJSON != nil {
		if err := json.Unmarshal(headersJSON, &headers); err != nil {
			return nil, fmt.Errorf("decode cached headers: %w", err)
		}
	}

	return &CachedResponse{Status: status, Body: body, Headers: headers}, nil
}

// SaveParams describes one completed mutation to persist for replay.
type SaveParams struct {
	WorkspaceID     string
	KeyHash         string
	OriginalKey     string
	Method          string
	Path            string
	RequestPayload  json.RawMessage
	Status          int
	ResponseBody    json.RawMessage
	ResponseHeaders map[string]string
}

// Save stores the response of a completed mutation under its key.
// Keys expire after 24 hours. A concurrent save of the same key is a
// no-op; the first writer's response wins.
func (r *IdempotencyRepo) Save(ctx context.Context, p SaveParams) error {
	headersJSON, err := json.Marshal(p.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("encode response headers: %w", err)
	}

	query := `
		INSERT INTO idempotency_keys (
			key_hash, workspace_id, original_key, request_method, request_path,
			request_payload, response_status, response_body, response_headers, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now() + INTERVAL '24 hours')
		ON CONFLICT (workspace_id, key_hash) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		p.KeyHash, p.WorkspaceID, p.OriginalKey, p.Method, p.Path,
		p.RequestPayload, p.Status, p.ResponseBody, headersJSON,
	)
	if err != nil {
		return fmt.Errorf("save idempotency result: %w", err)
	}

	return nil
}

// CleanupExpired removes expired idempotency keys. Run by the cleanup
// subcommand.
func (r *IdempotencyRepo) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM idempotency_keys WHERE expires_at < now()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired keys: %w", err)
	}

	return result.RowsAffected(), nil
}
