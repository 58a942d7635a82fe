// Package server wires configuration, storage, extraction and the gRPC and
// HTTP transports into a runnable application.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/cryptox"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"github.com/dmitrijs2005/biokeeper/internal/extractor/face"
	"github.com/dmitrijs2005/biokeeper/internal/extractor/remote"
	"github.com/dmitrijs2005/biokeeper/internal/extractor/voice"
	"github.com/dmitrijs2005/biokeeper/internal/liveness"
	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"github.com/dmitrijs2005/biokeeper/internal/matcher"
	"github.com/dmitrijs2005/biokeeper/internal/observability"
	"github.com/dmitrijs2005/biokeeper/internal/server/archive"
	"github.com/dmitrijs2005/biokeeper/internal/server/config"
	"github.com/dmitrijs2005/biokeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/biokeeper/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/biokeeper/internal/server/grpc"
	hs "github.com/dmitrijs2005/biokeeper/internal/server/http"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	extractor   *extractor.Extractor
	limiter     ratelimit.Limiter
	liveness    *liveness.Checker
	services    services.Bundle
	closers     []func() error
	tracingStop func(context.Context) error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, logging.ParseLevel(c.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	app := &App{config: c, logger: logger}

	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	stop, err := observability.InitTracing(ctx, app.logger, observability.TracingConfig{Enabled: c.TracingEnabled, ServiceName: "biokeeper"})
	if err != nil {
		return fmt.Errorf("tracing init error: %w", err)
	}
	app.tracingStop = stop

	if err := app.initStorage(ctx); err != nil {
		return err
	}

	key, err := cryptox.KeyFromConfig(c.EncryptionKey, c.EncryptionSalt)
	if err != nil {
		return fmt.Errorf("encryption key error: %w", err)
	}
	cipher, err := cryptox.NewCipher(key)
	if err != nil {
		return fmt.Errorf("cipher init error: %w", err)
	}

	app.extractor = app.buildExtractor()
	if err := app.extractor.Open(ctx); err != nil {
		return fmt.Errorf("extractor init error: %w", err)
	}
	app.closers = append(app.closers, app.extractor.Close)

	app.limiter = app.buildLimiter(ctx)

	var arch archive.Archive = archive.Noop{}
	if c.ArchiveEnabled {
		arch = archive.NewS3Archive(archive.S3Config{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		}, cipher)
	}

	engine := matcher.NewEngine(
		matcher.Policy{
			EuclideanThreshold: c.FaceEuclideanThreshold,
			CosineThreshold:    c.FaceCosineThreshold,
			CosineEpsilon:      c.CosineEpsilon,
		},
		matcher.Policy{
			EuclideanThreshold: c.FaceEuclideanThreshold,
			CosineThreshold:    c.VoiceCosineThreshold,
			CosineEpsilon:      c.CosineEpsilon,
			ForceCosine:        true,
		},
	)

	app.liveness = liveness.NewChecker(c.LivenessMotionThreshold)
	app.services = services.Bundle{
		Enrollment: services.NewEnrollmentService(app.db, app.repomanager, app.extractor, cipher, arch, app.logger),
		Verification: services.NewVerificationService(app.db, app.repomanager, app.extractor, cipher, engine,
			services.RateLimit{Limiter: app.limiter, Attempts: c.RateLimitAttempts, Window: c.RateLimitWindow}, app.logger),
		Sessions: services.NewSessionService(app.db, app.repomanager, app.liveness.Threshold(), app.logger),
		Ledger:   services.NewLedgerService(app.db, app.repomanager),
	}
	return nil
}

// initStorage opens PostgreSQL and migrates it, or falls back to in-memory
// repositories when no DSN is configured.
func (app *App) initStorage(ctx context.Context) error {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, using in-memory repositories")
		app.repomanager = repomanager.NewInMemoryRepositoryManager()
		return nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}
	app.repomanager = rm
	return nil
}

// buildExtractor assembles the per-modality backend chains. Remote
// sidecars come first when configured; the local backends always follow.
func (app *App) buildExtractor() *extractor.Extractor {
	c := app.config
	ex := extractor.New(extractor.Config{
		MaxConcurrent: c.MaxConcurrentExtractions,
		Timeout:       c.ExtractionTimeout,
	}, app.logger)

	if c.FaceEncoderURL != "" {
		ex.Register(biometric.ModalityFace, remote.New(remote.Config{
			Name:    "face-encoder",
			URL:     c.FaceEncoderURL,
			Length:  matcher.EuclideanLength,
			Timeout: c.ExtractionTimeout,
		}, nil))
	}
	if c.FaceEmbedderURL != "" {
		ex.Register(biometric.ModalityFace, remote.New(remote.Config{
			Name:      "face-embedder",
			URL:       c.FaceEmbedderURL,
			Normalize: true,
			NormEps:   c.NormEpsilon,
			Timeout:   c.ExtractionTimeout,
		}, nil))
	}
	ex.Register(biometric.ModalityFace, face.NewORBBackend(c.NormEpsilon))
	ex.Register(biometric.ModalityVoice, voice.NewMFCCBackend(c.NormEpsilon))
	return ex
}

// buildLimiter prefers Redis so limits hold across replicas and degrades
// to process-local counters when Redis is unreachable.
func (app *App) buildLimiter(ctx context.Context) ratelimit.Limiter {
	c := app.config
	if c.RateLimitAttempts <= 0 {
		return nil
	}
	if c.RedisAddr != "" {
		rl, err := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		if err == nil {
			if err = rl.Ping(ctx); err == nil {
				app.closers = append(app.closers, rl.Close)
				return rl
			}
			_ = rl.Close()
		}
		app.logger.Warn(ctx, "redis rate limiter unavailable, counting in process", "addr", c.RedisAddr, "error", err)
	}
	return ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
}

// initSignalHandler cancels on SIGINT, SIGTERM or SIGQUIT. The returned
// func stops listening.
func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case s := <-sigs:
			app.logger.Info(context.Background(), "signal received", "signal", s.String())
			cancelFunc()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run serves gRPC and HTTP until ctx is cancelled, a signal arrives or one
// of the servers fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	grpcSrv := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.services, app.config.SecretKey, app.config.AuthEnabled)
	httpSrv := hs.NewServer(hs.Options{
		Address:         app.config.EndpointAddrHTTP,
		Services:        app.services,
		Liveness:        app.liveness,
		Backends:        app.extractor.Registry(),
		JWTSecret:       app.config.SecretKey,
		AuthEnabled:     app.config.AuthEnabled,
		ShutdownTimeout: app.config.ShutdownTimeout,
	}, app.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcSrv.Run(gctx) })
	g.Go(func() error { return httpSrv.Run(gctx) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Close releases everything NewApp acquired, in reverse order.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	if app.tracingStop != nil {
		timeout := app.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := app.tracingStop(ctx); err != nil {
			errs = append(errs, err)
		}
		app.tracingStop = nil
	}
	return errors.Join(errs...)
}
