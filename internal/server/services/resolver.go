package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/events"
	"golang.org/x/sync/singleflight"
)

// DefaultEventResolver maps legacy payloads to the configured default event.
// The id is cached for ttl; concurrent misses share one lookup.
type DefaultEventResolver struct {
	repo events.Repository
	slug string
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	id      string
	fetched time.Time
}

func NewDefaultEventResolver(repo events.Repository, slug string, ttl time.Duration) *DefaultEventResolver {
	return &DefaultEventResolver{repo: repo, slug: slug, ttl: ttl, now: time.Now}
}

// Resolve returns the default event id. It satisfies qrcodec.EventResolver.
func (r *DefaultEventResolver) Resolve(ctx context.Context) (string, error) {
	if id, ok := r.cached(); ok {
		return id, nil
	}

	v, err, _ := r.group.Do(r.slug, func() (any, error) {
		if id, ok := r.cached(); ok {
			return id, nil
		}
		ev, err := r.repo.GetBySlug(ctx, r.slug)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return "", fmt.Errorf("default event %q: %w", r.slug, common.ErrorNotFound)
			}
			return "", err
		}

		r.mu.Lock()
		r.id, r.fetched = ev.ID, r.now()
		r.mu.Unlock()
		return ev.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached id so the next call reloads it.
func (r *DefaultEventResolver) Invalidate() {
	r.mu.Lock()
	r.id, r.fetched = "", time.Time{}
	r.mu.Unlock()
}

func (r *DefaultEventResolver) cached() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.id == "" {
		return "", false
	}
	if r.ttl > 0 && r.now().Sub(r.fetched) >= r.ttl {
		return "", false
	}
	return r.id, true
}
