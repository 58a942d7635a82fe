package events

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/dbx"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Event) (int64, error) {
	query :=
		`INSERT INTO verification_events
		   (session_id, user_id, modality, phase, match, score, threshold, metric, mock_used, trial)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		e.SessionID, e.UserID, string(e.Modality), string(e.Phase), e.Match, e.Score, e.Threshold, e.Metric, e.MockUsed, string(e.Trial)).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return e.ID, nil
}

func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.Event, error) {
	query :=
		`SELECT id, session_id, user_id, modality, phase, match, score, threshold, metric, mock_used, trial, created_at
		 FROM verification_events
		 WHERE session_id = $1
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var (
			e                      models.Event
			modality, phase, trial string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.UserID, &modality, &phase, &e.Match, &e.Score,
			&e.Threshold, &e.Metric, &e.MockUsed, &trial, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.Modality = biometric.Modality(modality)
		e.Phase = biometric.Phase(phase)
		e.Trial = biometric.Trial(trial)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}

func (r *PostgresRepository) Stats(ctx context.Context, sessionID int64) (models.EventStats, error) {
	query :=
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE trial = 'genuine'),
		        COUNT(*) FILTER (WHERE trial = 'genuine' AND NOT match),
		        COUNT(*) FILTER (WHERE trial = 'impostor'),
		        COUNT(*) FILTER (WHERE trial = 'impostor' AND match)
		 FROM verification_events
		 WHERE session_id = $1
		 `

	var s models.EventStats
	err := r.db.QueryRowContext(ctx, query, sessionID).
		Scan(&s.Total, &s.Genuine, &s.GenuineRejected, &s.Impostor, &s.ImpostorAccepted)
	if err != nil {
		return models.EventStats{}, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}
