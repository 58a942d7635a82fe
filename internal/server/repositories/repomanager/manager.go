// Package repomanager vends repository implementations bound to a database
// handle, so services can run the same code against *sql.DB, inside a
// transaction, or fully in memory.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/biokeeper/internal/dbx"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/templates"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	// WithTx runs fn atomically. Repositories obtained from tx inside fn
	// share the transaction.
	WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Templates(db dbx.DBTX) templates.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Events(db dbx.DBTX) events.Repository
}
