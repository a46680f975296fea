// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/attendees"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/checkins"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Attendees(db dbx.DBTX) attendees.Repository {
	return attendees.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Events(db dbx.DBTX) events.Repository {
	return events.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) CheckIns(db dbx.DBTX) checkins.Repository {
	return checkins.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
