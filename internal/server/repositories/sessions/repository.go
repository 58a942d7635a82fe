// Package sessions stores exam sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) (int64, error)
	// Get returns the session or common.ErrNotFound.
	Get(ctx context.Context, id int64) (*models.Session, error)
	// Complete moves an active session to completed. It reports false when
	// the session was not active, leaving the row untouched.
	Complete(ctx context.Context, id int64, endedAt time.Time) (bool, error)
}
