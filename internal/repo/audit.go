package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo handles audit log storage. Every registry and membership
// mutation is recorded here; failures to record are logged by callers
// but never fail the originating operation.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo creates a new AuditRepo
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Record writes one audit entry.
func (r *AuditRepo) Record(
	ctx context.Context,
	workspaceID, actorID, action, resourceType string,
	resourceID *string,
	metadata map[string]interface{},
) error {
	var metadataJSON []byte
	var err error

	if metadata != nil {
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (
			workspace_id, actor_id, action, resource_type, resource_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.pool.Exec(ctx, query,
		workspaceID, actorID, action, resourceType, resourceID, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}

	return nil
}
