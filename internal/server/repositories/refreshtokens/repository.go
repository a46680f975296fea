// Package refreshtokens declares the server-side repository contract for
// staff session refresh tokens.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID valid until expiresAt.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) error

	// Find looks up a refresh token by its opaque token string.
	// It returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired purges tokens of userID that expired before now.
	DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error)
}
