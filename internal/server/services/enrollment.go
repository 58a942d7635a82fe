package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"github.com/dmitrijs2005/biokeeper/internal/server/archive"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/repomanager"
)

type EnrollRequest struct {
	UserID     int64
	Modality   biometric.Modality
	Media      extractor.Media
	DeviceInfo string
}

type EnrollResult struct {
	TemplateID int64
	MockUsed   bool
	Backend    string
}

// EnrollmentService stores a fresh template for every enrollment. Earlier
// templates are kept as history.
type EnrollmentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	extractor   Extractor
	cipher      DescriptorCipher
	archive     archive.Archive
	logger      logging.Logger
}

func NewEnrollmentService(db *sql.DB, m repomanager.RepositoryManager, ex Extractor, c DescriptorCipher,
	a archive.Archive, logger logging.Logger) *EnrollmentService {
	if a == nil {
		a = archive.Noop{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &EnrollmentService{
		db:          db,
		repomanager: m,
		extractor:   ex,
		cipher:      c,
		archive:     a,
		logger:      logger.With("service", "enrollment"),
	}
}

// Enroll extracts a descriptor from the upload, seals it and stores it as
// the user's newest template for the modality.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	if err := checkCapture(s.extractor, req.UserID, req.Modality, req.Media); err != nil {
		return nil, err
	}

	res := s.extractor.Extract(ctx, req.Modality, req.Media)

	sealed, err := s.cipher.Seal(res.Vector)
	if err != nil {
		return nil, fmt.Errorf("seal descriptor: %w", err)
	}

	mediaRef, err := s.archive.Store(ctx, req.UserID, req.Modality, req.Media.Data)
	if err != nil {
		s.logger.Warn(ctx, "media archive failed", "user_id", req.UserID, "modality", req.Modality, "error", err)
		mediaRef = ""
	}

	t := &models.Template{
		UserID:              req.UserID,
		Modality:            req.Modality,
		EncryptedDescriptor: sealed,
		DeviceInfo:          req.DeviceInfo,
		MediaRef:            mediaRef,
	}
	id, err := s.repomanager.Templates(s.db).Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("error creating template: %w", err)
	}

	s.logger.Info(ctx, "template enrolled",
		"user_id", req.UserID, "modality", req.Modality, "template_id", id, "backend", res.Backend, "mock_used", res.UsedFallback)

	return &EnrollResult{TemplateID: id, MockUsed: res.UsedFallback, Backend: res.Backend}, nil
}
