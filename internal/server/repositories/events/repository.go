// Package events is the append-only verification event ledger.
package events

import (
	"context"

	"github.com/dmitrijs2005/biokeeper/internal/server/models"
)

type Repository interface {
	// Create appends an event and returns its ID.
	Create(ctx context.Context, e *models.Event) (int64, error)
	// ListBySession returns the events of a session in insertion order.
	ListBySession(ctx context.Context, sessionID int64) ([]models.Event, error)
	// Stats aggregates the events of a session by trial intent and outcome.
	Stats(ctx context.Context, sessionID int64) (models.EventStats, error)
}
