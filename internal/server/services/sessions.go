package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/dbx"
	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/repomanager"
)

type StartRequest struct {
	UserID          int64
	LivenessOK      bool
	LivenessScore   *float64
	ScheduleType    string
	DurationMinutes *int
	IntervalMinutes *int
}

type SessionResult struct {
	SessionID int64
	Status    models.SessionStatus
}

// SessionService owns the exam session state machine: sessions start
// active, behind the liveness gate, and are submitted once.
type SessionService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	motionThreshold float64
	now             func() time.Time
	logger          logging.Logger
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, motionThreshold float64, logger logging.Logger) *SessionService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SessionService{
		db:              db,
		repomanager:     m,
		motionThreshold: motionThreshold,
		now:             time.Now,
		logger:          logger.With("service", "sessions"),
	}
}

// ParseScheduleType validates s exactly; an empty value means start_end.
func ParseScheduleType(s string) (models.ScheduleType, error) {
	switch st := models.ScheduleType(s); st {
	case "":
		return models.ScheduleStartEnd, nil
	case models.ScheduleStartEnd, models.ScheduleInterval:
		return st, nil
	default:
		return "", fmt.Errorf("%w: invalid schedule_type %q", common.ErrValidation, s)
	}
}

// checkMinutes accepts nil or a value that fits the INTEGER column.
func checkMinutes(field string, v *int) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > math.MaxInt32 {
		return fmt.Errorf("%w: %s must be between 0 and %d", common.ErrValidation, field, math.MaxInt32)
	}
	return nil
}

func (s *SessionService) Start(ctx context.Context, req StartRequest) (*SessionResult, error) {
	if req.UserID <= 0 {
		return nil, fmt.Errorf("%w: user_id must be positive", common.ErrValidation)
	}
	schedule, err := ParseScheduleType(req.ScheduleType)
	if err != nil {
		return nil, err
	}
	if !req.LivenessOK || req.LivenessScore == nil || *req.LivenessScore < s.motionThreshold {
		return nil, fmt.Errorf("%w: liveness check failed or missing", common.ErrValidation)
	}
	if err := checkMinutes("duration_minutes", req.DurationMinutes); err != nil {
		return nil, err
	}
	if err := checkMinutes("interval_minutes", req.IntervalMinutes); err != nil {
		return nil, err
	}

	sess := &models.Session{
		UserID:          req.UserID,
		Status:          models.SessionActive,
		ScheduleType:    schedule,
		DurationMinutes: req.DurationMinutes,
		IntervalMinutes: req.IntervalMinutes,
	}
	id, err := s.repomanager.Sessions(s.db).Create(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	s.logger.Info(ctx, "session started", "session_id", id, "user_id", req.UserID, "schedule_type", schedule)
	return &SessionResult{SessionID: id, Status: models.SessionActive}, nil
}

// Submit completes the user's session. Submitting a completed session
// returns its state without writing; concurrent submits are resolved by a
// conditional update.
func (s *SessionService) Submit(ctx context.Context, sessionID, userID int64) (*SessionResult, error) {
	var out *SessionResult

	err := s.repomanager.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Sessions(tx)

		sess, err := repo.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.UserID != userID {
			return common.ErrNotFound
		}
		if sess.Status == models.SessionCompleted {
			out = &SessionResult{SessionID: sess.ID, Status: sess.Status}
			return nil
		}

		if _, err := repo.Complete(ctx, sessionID, s.now().UTC()); err != nil {
			return err
		}
		out = &SessionResult{SessionID: sess.ID, Status: models.SessionCompleted}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("session %d: %w", sessionID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("error submitting session: %w", err)
	}

	s.logger.Info(ctx, "session submitted", "session_id", sessionID, "user_id", userID)
	return out, nil
}
