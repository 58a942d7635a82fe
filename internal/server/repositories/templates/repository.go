// Package templates stores sealed biometric templates.
package templates

import (
	"context"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
)

type Repository interface {
	// Create inserts a new template row and returns its ID. It never
	// overwrites an earlier enrollment.
	Create(ctx context.Context, t *models.Template) (int64, error)
	// GetLatest returns the newest template of userID for modality, or
	// common.ErrNotFound.
	GetLatest(ctx context.Context, userID int64, modality biometric.Modality) (*models.Template, error)
}
