// Package http exposes the biometric services over a gin REST API with
// multipart uploads.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"github.com/dmitrijs2005/biokeeper/internal/liveness"
	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"github.com/dmitrijs2005/biokeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// DefaultMaxUploadBytes caps a single uploaded file.
const DefaultMaxUploadBytes = 16 << 20

type Options struct {
	Address        string
	Services       services.Bundle
	Liveness       *liveness.Checker
	Backends       *extractor.Registry
	JWTSecret      string
	AuthEnabled    bool
	MaxUploadBytes int64
	// ShutdownTimeout bounds the graceful drain on stop.
	ShutdownTimeout time.Duration
}

type Server struct {
	opts   Options
	svc    services.Bundle
	logger logging.Logger
	engine *gin.Engine
}

func NewServer(opts Options, l logging.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Liveness == nil {
		opts.Liveness = liveness.NewChecker(liveness.DefaultMotionThreshold)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if l == nil {
		l = logging.Nop{}
	}

	s := &Server{opts: opts, svc: opts.Services, logger: l.With("module", "http_server")}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), requestID(), otelgin.Middleware("biokeeper"), s.requestLogger())

	r.GET("/healthz", s.health)

	api := r.Group("/api/v1")
	if s.opts.AuthEnabled {
		api.Use(s.requireAuth())
	}

	api.POST("/enroll/:modality", s.enroll)
	api.POST("/verify/authenticate/:modality", s.verify)
	api.POST("/verify/authenticate/:modality/:phase", s.verifyAndLog)

	api.POST("/exam/session/start", s.startSession)
	api.POST("/exam/session/submit", s.submitSession)
	api.GET("/exam/metrics/session/:id", s.sessionMetrics)
	api.GET("/exam/session/:id/details", s.sessionDetails)

	api.POST("/liveness/check", s.livenessCheck)

	return r
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.opts.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(context.Background(), "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
