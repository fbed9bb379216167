package permissions

import (
	"context"
	"encoding/json"
	"fmt"

	"adboard-api/internal/observability/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const invalidationChannel = "adboard:permissions:invalidate"

// invalidationMessage is the wire payload broadcast when an access
// level changes.
type invalidationMessage struct {
	WorkspaceID   string `json:"workspaceId"`
	AccessLevelID string `json:"accessLevelId,omitempty"`
}

// InvalidationBus broadcasts access-level changes over redis pub/sub
// so every API instance drops the cached resolutions that were built
// from the old template version, not just the instance that handled
// the mutation.
type InvalidationBus struct {
	client *redis.Client
	log    *logger.Logger
}

// NewInvalidationBus creates an InvalidationBus on the given client.
func NewInvalidationBus(client *redis.Client, log *logger.Logger) *InvalidationBus {
	return &InvalidationBus{client: client, log: log}
}

// PublishAccessLevelChange announces that a workspace's access level
// was created, updated or deleted.
func (b *InvalidationBus) PublishAccessLevelChange(ctx context.Context, workspaceID, accessLevelID string) error {
	payload, err := json.Marshal(invalidationMessage{
		WorkspaceID:   workspaceID,
		AccessLevelID: accessLevelID,
	})
	if err != nil {
		return fmt.Errorf("encode invalidation message: %w", err)
	}

	if err := b.client.Publish(ctx, invalidationChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}

	return nil
}

// Listen consumes invalidation messages and forwards the workspace id
// to the manager until ctx is canceled. Malformed messages are logged
// and skipped; the subscription itself ending is returned to the
// caller.
func (b *InvalidationBus) Listen(ctx context.Context, manager *Manager) error {
	sub := b.client.Subscribe(ctx, invalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("invalidation subscription closed")
			}

			var payload invalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				b.log.Warn(ctx, "dropping malformed invalidation message",
					logger.Module("permissions"),
					logger.Action("invalidate"),
					zap.Error(err),
				)
				continue
			}

			manager.InvalidateWorkspace(payload.WorkspaceID)
		}
	}
}
