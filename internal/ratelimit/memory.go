package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory. Counters are not shared
// between server instances.
type MemoryLimiter struct {
	opts    Options
	mu      sync.Mutex
	entries map[string]*window
	now     func() time.Time

	nextSweep time.Time
}

func NewMemoryLimiter(opts Options) *MemoryLimiter {
	return &MemoryLimiter{
		opts:    opts.withDefaults(),
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	k := l.opts.storeKey(key)
	w, ok := l.entries[k]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.opts.Window)}
		l.entries[k] = w
	}
	w.count++

	return decide(l.opts, w.count, w.resetAt.Sub(now)), nil
}

// sweep drops expired windows at most once per window length.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, w := range l.entries {
		if !now.Before(w.resetAt) {
			delete(l.entries, k)
		}
	}
	l.nextSweep = now.Add(l.opts.Window)
}

// Len returns the number of tracked windows.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
