package repomanager

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/biokeeper/internal/dbx"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/templates"
)

// InMemoryRepositoryManager serves process-local repositories and ignores
// the database handle. Transactions are serialized by a mutex.
type InMemoryRepositoryManager struct {
	txMu      sync.Mutex
	templates *templates.MemoryRepository
	sessions  *sessions.MemoryRepository
	events    *events.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		templates: templates.NewMemoryRepository(),
		sessions:  sessions.NewMemoryRepository(),
		events:    events.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, _ *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, nil)
}

func (m *InMemoryRepositoryManager) Templates(dbx.DBTX) templates.Repository { return m.templates }
func (m *InMemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository   { return m.sessions }
func (m *InMemoryRepositoryManager) Events(dbx.DBTX) events.Repository       { return m.events }
