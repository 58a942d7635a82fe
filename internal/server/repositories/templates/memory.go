package templates

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
)

// MemoryRepository keeps templates in process. It backs development runs
// without a database.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   []models.Template
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, t *models.Template) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	t.ID = r.nextID
	t.CreatedAt = time.Now().UTC()

	row := *t
	row.EncryptedDescriptor = slices.Clone(t.EncryptedDescriptor)
	r.rows = append(r.rows, row)
	return t.ID, nil
}

func (r *MemoryRepository) GetLatest(_ context.Context, userID int64, modality biometric.Modality) (*models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if row.UserID == userID && row.Modality == modality {
			row.EncryptedDescriptor = slices.Clone(row.EncryptedDescriptor)
			return &row, nil
		}
	}
	return nil, common.ErrNotFound
}
