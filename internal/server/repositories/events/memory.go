package events

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   []models.Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, e *models.Event) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now().UTC()
	r.rows = append(r.rows, *e)
	return e.ID, nil
}

func (r *MemoryRepository) ListBySession(_ context.Context, sessionID int64) ([]models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Event
	for _, e := range r.rows {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Stats(_ context.Context, sessionID int64) (models.EventStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s models.EventStats
	for _, e := range r.rows {
		if e.SessionID != sessionID {
			continue
		}
		s.Total++
		switch e.Trial {
		case biometric.TrialImpostor:
			s.Impostor++
			if e.Match {
				s.ImpostorAccepted++
			}
		default:
			s.Genuine++
			if !e.Match {
				s.GenuineRejected++
			}
		}
	}
	return s, nil
}
