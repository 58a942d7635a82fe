package sessions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
	"github.com/google/go-cmp/cmp"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQuery   = `(?s)^INSERT\s+INTO\s+exam_sessions\s*\(user_id,\s*status,\s*schedule_type,\s*duration_minutes,\s*interval_minutes\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id,\s*started_at\s*$`
	selectQuery   = `(?s)^SELECT\s+id,\s*user_id,\s*started_at,\s*ended_at,\s*duration_minutes,\s*status,\s*schedule_type,\s*interval_minutes\s+FROM\s+exam_sessions\s+WHERE\s+id\s*=\s*\$1\s*$`
	completeQuery = `(?s)^UPDATE\s+exam_sessions\s+SET\s+status\s*=\s*'completed',\s*ended_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'active'\s*$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	duration := 90
	mock.ExpectQuery(insertQuery).
		WithArgs(int64(5), "active", "start_end", int64(90), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "started_at"}).AddRow(int64(11), now))

	s := &models.Session{UserID: 5, Status: models.SessionActive, ScheduleType: models.ScheduleStartEnd, DurationMinutes: &duration}
	id, err := repo.Create(context.Background(), s)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if id != 11 || !s.StartedAt.Equal(now) {
		t.Fatalf("unexpected session: %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Session{UserID: 5})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ended := started.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "started_at", "ended_at", "duration_minutes", "status", "schedule_type", "interval_minutes"}).
		AddRow(int64(11), int64(5), started, ended, nil, "completed", "interval", int64(15))
	mock.ExpectQuery(selectQuery).WithArgs(int64(11)).WillReturnRows(rows)

	got, err := repo.Get(context.Background(), 11)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	interval := 15
	want := &models.Session{
		ID:              11,
		UserID:          5,
		StartedAt:       started,
		EndedAt:         &ended,
		Status:          models.SessionCompleted,
		ScheduleType:    models.ScheduleInterval,
		IntervalMinutes: &interval,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQuery).WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 404)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"active session", 1, true},
		{"already completed", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			ended := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			mock.ExpectExec(completeQuery).WithArgs(int64(11), ended).WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.Complete(context.Background(), 11, ended)
			if err != nil {
				t.Fatalf("Complete error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Complete = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComplete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(completeQuery).WillReturnError(errors.New("db err"))

	_, err := repo.Complete(context.Background(), 11, time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
