// Package events provides read access to events.
package events

import (
	"context"

	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
}
