// Package metadata stores small key/value facts about the scanner: the
// signed-in staff member's offline credentials and the guest list snapshot
// header.
package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyUsername       = "username"
	KeySalt           = "salt"
	KeyVerifier       = "verifier"
	KeyCachedAt       = "cached_at"
	KeyDefaultEventID = "default_event_id"
)

// Repository reads return (nil, nil) for absent keys.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
