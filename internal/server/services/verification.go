package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"github.com/dmitrijs2005/biokeeper/internal/matcher"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
	"github.com/dmitrijs2005/biokeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/repomanager"
)

type VerifyRequest struct {
	UserID   int64
	Modality biometric.Modality
	Media    extractor.Media
}

type VerifyResult struct {
	Match     bool
	Score     float64
	Threshold float64
	Metric    matcher.Metric
	MockUsed  bool
	Backend   string
}

type VerifyAndLogRequest struct {
	VerifyRequest
	SessionID int64
	Phase     biometric.Phase
	Trial     biometric.Trial
}

type VerifyAndLogResult struct {
	VerifyResult
	SessionID int64
	Phase     biometric.Phase
	EventID   int64
}

// RateLimit bounds verification attempts per user and modality. Attempts
// <= 0 disables limiting.
type RateLimit struct {
	Limiter  ratelimit.Limiter
	Attempts int
	Window   time.Duration
}

// VerificationService compares fresh captures with the newest enrolled
// template and optionally records the outcome against an exam session.
type VerificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	extractor   Extractor
	cipher      DescriptorCipher
	matcher     *matcher.Engine
	limit       RateLimit
	logger      logging.Logger
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, ex Extractor, c DescriptorCipher,
	engine *matcher.Engine, limit RateLimit, logger logging.Logger) *VerificationService {
	if engine == nil {
		engine = matcher.NewEngine(matcher.FacePolicy(), matcher.VoicePolicy())
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &VerificationService{
		db:          db,
		repomanager: m,
		extractor:   ex,
		cipher:      c,
		matcher:     engine,
		limit:       limit,
		logger:      logger.With("service", "verification"),
	}
}

// Verify decides whether the upload matches the user's newest template.
// A missing template is common.ErrNotFound; an unreadable one surfaces as
// common.ErrDecryption and never as a non-match.
func (s *VerificationService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if err := checkCapture(s.extractor, req.UserID, req.Modality, req.Media); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, req.UserID, req.Modality); err != nil {
		return nil, err
	}

	tpl, err := s.repomanager.Templates(s.db).GetLatest(ctx, req.UserID, req.Modality)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("no %s template for user %d: %w", req.Modality, req.UserID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("error loading template: %w", err)
	}

	res := s.extractor.Extract(ctx, req.Modality, req.Media)

	stored, err := s.cipher.Open(tpl.EncryptedDescriptor)
	if err != nil {
		s.logger.Error(ctx, "stored template unreadable", "user_id", req.UserID, "template_id", tpl.ID, "error", err)
		return nil, fmt.Errorf("open template %d: %w", tpl.ID, err)
	}

	d := s.matcher.Decide(req.Modality, res.Vector, stored)
	if !d.Comparable {
		s.logger.Warn(ctx, "descriptor shapes differ",
			"user_id", req.UserID, "modality", req.Modality, "input_len", len(res.Vector), "stored_len", len(stored))
	}

	return &VerifyResult{
		Match:     d.Match,
		Score:     d.Score,
		Threshold: d.Threshold,
		Metric:    d.Metric,
		MockUsed:  res.UsedFallback,
		Backend:   res.Backend,
	}, nil
}

// VerifyAndLog verifies inside an exam session and appends the outcome to
// the ledger. The session must belong to the user and still be active.
func (s *VerificationService) VerifyAndLog(ctx context.Context, req VerifyAndLogRequest) (*VerifyAndLogResult, error) {
	if req.Trial == "" {
		req.Trial = biometric.TrialGenuine
	}
	if err := checkCapture(s.extractor, req.UserID, req.Modality, req.Media); err != nil {
		return nil, err
	}

	sess, err := s.repomanager.Sessions(s.db).Get(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("session %d: %w", req.SessionID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("error loading session: %w", err)
	}
	if sess.UserID != req.UserID {
		return nil, fmt.Errorf("session %d: %w", req.SessionID, common.ErrNotFound)
	}
	if sess.Status != models.SessionActive {
		return nil, fmt.Errorf("%w: session %d is %s", common.ErrValidation, req.SessionID, sess.Status)
	}

	vr, err := s.Verify(ctx, req.VerifyRequest)
	if err != nil {
		return nil, err
	}

	ev := &models.Event{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Modality:  req.Modality,
		Phase:     req.Phase,
		Match:     vr.Match,
		Score:     vr.Score,
		Threshold: vr.Threshold,
		Metric:    string(vr.Metric),
		MockUsed:  vr.MockUsed,
		Trial:     req.Trial,
	}
	id, err := s.repomanager.Events(s.db).Create(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("error logging event: %w", err)
	}

	s.logger.Info(ctx, "verification logged",
		"session_id", req.SessionID, "user_id", req.UserID, "modality", req.Modality, "phase", req.Phase,
		"match", vr.Match, "metric", vr.Metric, "mock_used", vr.MockUsed, "event_id", id)

	return &VerifyAndLogResult{VerifyResult: *vr, SessionID: req.SessionID, Phase: req.Phase, EventID: id}, nil
}

func (s *VerificationService) allow(ctx context.Context, userID int64, m biometric.Modality) error {
	if s.limit.Limiter == nil || s.limit.Attempts <= 0 {
		return nil
	}
	key := "verify:" + strconv.FormatInt(userID, 10) + ":" + string(m)
	d, err := s.limit.Limiter.Allow(ctx, key, s.limit.Attempts, s.limit.Window)
	if err != nil {
		s.logger.Warn(ctx, "rate limiter unavailable", "error", err)
		return nil
	}
	if !d.Allowed {
		return fmt.Errorf("%w: retry after %s", common.ErrRateLimited, d.ResetAt.Format(time.RFC3339))
	}
	return nil
}
