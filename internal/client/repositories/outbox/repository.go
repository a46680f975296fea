// Package outbox is the durable queue of check-ins accepted while offline.
package outbox

import (
	"context"

	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
)

type Repository interface {
	Add(ctx context.Context, e *models.OutboxEntry) error
	// List returns entries oldest first.
	List(ctx context.Context) ([]*models.OutboxEntry, error)
	Delete(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, reason string) error
	Count(ctx context.Context) (int, error)
}
