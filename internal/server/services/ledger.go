package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/server/models"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/repomanager"
)

// Metrics summarizes the error rates of one session. FRR is nil without
// genuine attempts and FAR is nil without impostor attempts.
type Metrics struct {
	SessionID int64
	Events    int
	FRR       *float64
	FAR       *float64
}

// LedgerService reads the verification event ledger.
type LedgerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewLedgerService(db *sql.DB, m repomanager.RepositoryManager) *LedgerService {
	return &LedgerService{db: db, repomanager: m}
}

func (s *LedgerService) Metrics(ctx context.Context, sessionID int64) (*Metrics, error) {
	st, err := s.repomanager.Events(s.db).Stats(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error loading event stats: %w", err)
	}

	m := &Metrics{SessionID: sessionID, Events: st.Total}
	if st.Genuine > 0 {
		frr := float64(st.GenuineRejected) / float64(st.Genuine)
		m.FRR = &frr
	}
	if st.Impostor > 0 {
		far := float64(st.ImpostorAccepted) / float64(st.Impostor)
		m.FAR = &far
	}
	return m, nil
}

// Events returns the session log in insertion order.
func (s *LedgerService) Events(ctx context.Context, sessionID int64) ([]models.Event, error) {
	evs, err := s.repomanager.Events(s.db).ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error loading events: %w", err)
	}
	return evs, nil
}
