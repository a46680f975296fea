// Package checkins stores the check-in audit trail.
package checkins

import (
	"context"

	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
)

type Repository interface {
	Record(ctx context.Context, attempt *models.CheckInAttempt) error
	ListRecent(ctx context.Context, limit int) ([]*models.CheckInAttempt, error)
}
