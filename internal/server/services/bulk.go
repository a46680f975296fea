package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/repomanager"
	"golang.org/x/sync/errgroup"
)

type issuer interface {
	Issue(ctx context.Context, attendeeID, eventID string) (*IssuedToken, error)
}

// BulkRefreshResult summarises one bulk run. Errors holds at most the
// configured sample of failure messages.
type BulkRefreshResult struct {
	Refreshed int
	Failed    int
	Total     int
	Errors    []string
}

// BulkRefresher re-issues tokens for many attendees in fixed-size batches.
// Attendees within a batch are processed concurrently and batches are
// separated by a pause to spare the database.
type BulkRefresher struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      issuer
	batchSize   int
	pause       time.Duration
	errorSample int
	logger      logging.Logger
}

func NewBulkRefresher(db *sql.DB, m repomanager.RepositoryManager, issuer issuer,
	batchSize int, pause time.Duration, errorSample int, logger logging.Logger) *BulkRefresher {
	if batchSize <= 0 {
		batchSize = 10
	}
	if errorSample < 0 {
		errorSample = 0
	}
	return &BulkRefresher{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		batchSize:   batchSize,
		pause:       pause,
		errorSample: errorSample,
		logger:      logger,
	}
}

// Refresh re-issues tokens for every attendee of eventID, or of all events
// when eventID is empty. Nothing happens unless confirm is set. On
// cancellation the partial result is returned together with ctx.Err().
func (b *BulkRefresher) Refresh(ctx context.Context, eventID string, confirm bool) (*BulkRefreshResult, error) {
	if !confirm {
		return nil, common.ErrConfirmationRequired
	}

	repo := b.repomanager.Attendees(b.db)

	var (
		refs []models.AttendeeRef
		err  error
	)
	if eventID != "" {
		refs, err = repo.ListByEvent(ctx, eventID)
	} else {
		refs, err = repo.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("error listing attendees: %w", err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no attendees found: %w", common.ErrorNotFound)
	}

	res := &BulkRefreshResult{Total: len(refs)}
	var mu sync.Mutex

	for start := 0; start < len(refs); start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := min(start+b.batchSize, len(refs))

		var g errgroup.Group
		for _, ref := range refs[start:end] {
			ref := ref
			g.Go(func() error {
				_, err := b.issuer.Issue(ctx, ref.ID, ref.EventID)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					res.Failed++
					if len(res.Errors) < b.errorSample {
						res.Errors = append(res.Errors, fmt.Sprintf("Failed for %s: %v", ref.ID, err))
					}
					return nil
				}
				res.Refreshed++
				return nil
			})
		}
		_ = g.Wait()

		if end < len(refs) && b.pause > 0 {
			t := time.NewTimer(b.pause)
			select {
			case <-ctx.Done():
				t.Stop()
				return res, ctx.Err()
			case <-t.C:
			}
		}
	}

	b.logger.Info(ctx, "bulk refresh finished",
		"event_id", eventID, "total", res.Total, "refreshed", res.Refreshed, "failed", res.Failed)
	return res, nil
}
