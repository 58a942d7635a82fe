package templates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/dbx"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.Template) (int64, error) {
	query :=
		`INSERT INTO biometric_templates (user_id, modality, encrypted_descriptor, device_info, media_ref)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	var mediaRef sql.NullString
	if t.MediaRef != "" {
		mediaRef = sql.NullString{String: t.MediaRef, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		t.UserID, string(t.Modality), t.EncryptedDescriptor, t.DeviceInfo, mediaRef).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return t.ID, nil
}

func (r *PostgresRepository) GetLatest(ctx context.Context, userID int64, modality biometric.Modality) (*models.Template, error) {
	query :=
		`SELECT id, user_id, modality, encrypted_descriptor, created_at, device_info, media_ref
		 FROM biometric_templates
		 WHERE user_id = $1 AND modality = $2
		 ORDER BY id DESC
		 LIMIT 1
		 `

	var (
		t        models.Template
		mod      string
		mediaRef sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, userID, string(modality)).
		Scan(&t.ID, &t.UserID, &mod, &t.EncryptedDescriptor, &t.CreatedAt, &t.DeviceInfo, &mediaRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Modality = biometric.Modality(mod)
	t.MediaRef = mediaRef.String

	return &t, nil
}
