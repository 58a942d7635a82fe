package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) (int64, error) {
	query :=
		`INSERT INTO exam_sessions (user_id, status, schedule_type, duration_minutes, interval_minutes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, started_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		s.UserID, string(s.Status), string(s.ScheduleType), nullInt(s.DurationMinutes), nullInt(s.IntervalMinutes)).
		Scan(&s.ID, &s.StartedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return s.ID, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Session, error) {
	query :=
		`SELECT id, user_id, started_at, ended_at, duration_minutes, status, schedule_type, interval_minutes
		 FROM exam_sessions
		 WHERE id = $1
		 `

	var (
		s                  models.Session
		endedAt            sql.NullTime
		duration, interval sql.NullInt32
		status, schedule   string
	)
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.UserID, &s.StartedAt, &endedAt, &duration, &status, &schedule, &interval)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	s.Status = models.SessionStatus(status)
	s.ScheduleType = models.ScheduleType(schedule)
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	s.DurationMinutes = intPtr(duration)
	s.IntervalMinutes = intPtr(interval)

	return &s, nil
}

func (r *PostgresRepository) Complete(ctx context.Context, id int64, endedAt time.Time) (bool, error) {
	query :=
		`UPDATE exam_sessions SET status = 'completed', ended_at = $2
		 WHERE id = $1 AND status = 'active'
		 `

	res, err := r.db.ExecContext(ctx, query, id, endedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}

func nullInt(p *int) sql.NullInt32 {
	if p == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*p), Valid: true}
}

func intPtr(n sql.NullInt32) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int32)
	return &v
}
