package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/attendees"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/checkins"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same repository code over the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Attendees(db dbx.DBTX) attendees.Repository
	Events(db dbx.DBTX) events.Repository
	CheckIns(db dbx.DBTX) checkins.Repository
}
