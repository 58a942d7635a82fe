package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]models.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[int64]models.Session)}
}

func (r *MemoryRepository) Create(_ context.Context, s *models.Session) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s.ID = r.nextID
	s.StartedAt = time.Now().UTC()
	r.rows[s.ID] = clone(*s)
	return s.ID, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := clone(s)
	return &out, nil
}

func (r *MemoryRepository) Complete(_ context.Context, id int64, endedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok || s.Status != models.SessionActive {
		return false, nil
	}
	s.Status = models.SessionCompleted
	s.EndedAt = &endedAt
	r.rows[id] = s
	return true, nil
}

func clone(s models.Session) models.Session {
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	if s.DurationMinutes != nil {
		v := *s.DurationMinutes
		s.DurationMinutes = &v
	}
	if s.IntervalMinutes != nil {
		v := *s.IntervalMinutes
		s.IntervalMinutes = &v
	}
	return s
}
