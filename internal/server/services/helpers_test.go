package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/cryptox"
	"github.com/dmitrijs2005/biokeeper/internal/dbx"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/templates"
)

// --- helpers ---

type failingBackend struct{}

func (failingBackend) Name() string { return "always-fails" }
func (failingBackend) Extract(context.Context, extractor.Media) (biometric.Vector, error) {
	return nil, errors.New("no model")
}

// newFallbackExtractor supports face and voice but always ends up on the
// deterministic fallback descriptor.
func newFallbackExtractor() *extractor.Extractor {
	ex := extractor.New(extractor.Config{}, nil)
	ex.Register(biometric.ModalityFace, failingBackend{})
	ex.Register(biometric.ModalityVoice, failingBackend{})
	return ex
}

func newTestCipher(t *testing.T) *cryptox.Cipher {
	t.Helper()
	key, err := cryptox.KeyFromConfig("test-secret", "test-salt")
	if err != nil {
		t.Fatalf("KeyFromConfig error: %v", err)
	}
	c, err := cryptox.NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher error: %v", err)
	}
	return c
}

type fakeExtractor struct {
	supported map[biometric.Modality]bool
	res       extractor.Result
	calls     int
}

func (f *fakeExtractor) Supports(m biometric.Modality) bool { return f.supported[m] }
func (f *fakeExtractor) Extract(context.Context, biometric.Modality, extractor.Media) extractor.Result {
	f.calls++
	return f.res
}

type fakeTemplatesRepo struct {
	createErr error
	created   []models.Template

	latest    *models.Template
	latestErr error
}

func (f *fakeTemplatesRepo) Create(_ context.Context, t *models.Template) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, *t)
	return int64(len(f.created)), nil
}

func (f *fakeTemplatesRepo) GetLatest(context.Context, int64, biometric.Modality) (*models.Template, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

type fakeEventsRepo struct {
	stats    models.EventStats
	statsErr error
	listErr  error
}

func (f *fakeEventsRepo) Create(context.Context, *models.Event) (int64, error) { return 0, nil }
func (f *fakeEventsRepo) ListBySession(context.Context, int64) ([]models.Event, error) {
	return nil, f.listErr
}
func (f *fakeEventsRepo) Stats(context.Context, int64) (models.EventStats, error) {
	return f.stats, f.statsErr
}

type fakeRepoManager struct {
	t *fakeTemplatesRepo
	s sessions.Repository
	e events.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) WithTx(ctx context.Context, _ *sql.DB, fn func(context.Context, dbx.DBTX) error) error {
	return fn(ctx, nil)
}
func (m *fakeRepoManager) Templates(dbx.DBTX) templates.Repository { return m.t }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository   { return m.s }
func (m *fakeRepoManager) Events(dbx.DBTX) events.Repository       { return m.e }

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)

type failingArchive struct{}

func (failingArchive) Store(context.Context, int64, biometric.Modality, []byte) (string, error) {
	return "", errors.New("bucket missing")
}

type recordingArchive struct{ keys []string }

func (a *recordingArchive) Store(_ context.Context, userID int64, m biometric.Modality, _ []byte) (string, error) {
	k := string(m) + "/stored"
	a.keys = append(a.keys, k)
	return k, nil
}

func ptr[T any](v T) *T { return &v }
