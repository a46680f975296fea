package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/repomanager"
)

// Snapshot is the guest list handed to scanners for offline use.
type Snapshot struct {
	CachedAt       time.Time
	DefaultEventID string
	Events         []*models.Event
	Attendees      []*models.SnapshotEntry
}

type SnapshotService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	defaultSlug string
	now         func() time.Time
}

func NewSnapshotService(db *sql.DB, m repomanager.RepositoryManager, defaultSlug string) *SnapshotService {
	return &SnapshotService{db: db, repomanager: m, defaultSlug: defaultSlug, now: time.Now}
}

// OfflineSnapshot reads events and attendees in one read-only transaction.
// An empty eventID includes the attendees of every event.
func (s *SnapshotService) OfflineSnapshot(ctx context.Context, eventID string) (*Snapshot, error) {
	snap := &Snapshot{}

	err := dbx.WithReadTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		evs, err := s.repomanager.Events(tx).List(ctx)
		if err != nil {
			return err
		}
		list, err := s.repomanager.Attendees(tx).ListForSnapshot(ctx, eventID)
		if err != nil {
			return err
		}
		snap.Events, snap.Attendees = evs, list
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap.CachedAt = s.now().UTC()
	snap.DefaultEventID = s.defaultEventID(snap.Events)
	return snap, nil
}

func (s *SnapshotService) defaultEventID(evs []*models.Event) string {
	for _, e := range evs {
		if e.Slug == s.defaultSlug {
			return e.ID
		}
	}
	if len(evs) > 0 {
		return evs[0].ID
	}
	return ""
}
