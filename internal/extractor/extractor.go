// Package extractor turns raw media uploads into biometric descriptors.
//
// Each modality owns an ordered chain of backends. Extract tries them in
// order and returns the first usable vector; a backend that errors, panics
// or exceeds its time budget is skipped. When the chain is exhausted the
// deterministic fallback descriptor is returned and flagged, so callers can
// always audit whether a real model produced the result.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// FallbackBackendName is reported in Result.Backend for fallback descriptors.
const FallbackBackendName = "fallback"

// Media is one uploaded sample.
type Media struct {
	Data     []byte
	Filename string
}

// Backend produces a descriptor from media or fails.
type Backend interface {
	Name() string
	Extract(ctx context.Context, m Media) (biometric.Vector, error)
}

// Prober is implemented by backends whose availability must be checked
// once at startup, such as remote model services.
type Prober interface {
	Probe(ctx context.Context) error
}

// Result is the outcome of Extract.
type Result struct {
	Vector       biometric.Vector
	Backend      string
	UsedFallback bool
}

// Config tunes resource usage of the extractor.
type Config struct {
	// MaxConcurrent bounds simultaneous extractions across all modalities.
	MaxConcurrent int64
	// Timeout bounds a single backend call.
	Timeout time.Duration
	// ProbeTimeout bounds a single startup probe.
	ProbeTimeout time.Duration
}

// Extractor owns the backend chains. Build it once at startup, call Open,
// share it between handlers and Close it on shutdown.
type Extractor struct {
	chains   map[biometric.Modality][]Backend
	registry *Registry
	sem      *semaphore.Weighted
	cfg      Config
	logger   logging.Logger
	tracer   trace.Tracer
}

// New builds an Extractor without any chains.
func New(cfg Config, logger logging.Logger) *Extractor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Extractor{
		chains:   make(map[biometric.Modality][]Backend),
		registry: newRegistry(),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:      cfg,
		logger:   logger.With("module", "extractor"),
		tracer:   otel.Tracer("github.com/dmitrijs2005/biokeeper/internal/extractor"),
	}
}

// Register appends backends to the chain of modality m, preserving order.
func (e *Extractor) Register(m biometric.Modality, backends ...Backend) {
	for _, b := range backends {
		if b != nil {
			e.chains[m] = append(e.chains[m], b)
		}
	}
}

// Supports reports whether m has a chain. Modalities without a chain have
// no capture pipeline at all and are rejected by the service layer.
func (e *Extractor) Supports(m biometric.Modality) bool {
	_, ok := e.chains[m]
	return ok
}

// Registry exposes the startup availability of every backend.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Open probes every backend once and records its availability.
func (e *Extractor) Open(ctx context.Context) error {
	for m, chain := range e.chains {
		for i, b := range chain {
			s := Status{Name: b.Name(), Modality: m, Position: i, Available: true}
			if p, ok := b.(Prober); ok {
				pctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
				if err := p.Probe(pctx); err != nil {
					s.Available = false
					s.Reason = err.Error()
				}
				cancel()
			}
			e.registry.set(s)
			e.logger.Info(ctx, "extraction backend probed",
				"modality", m, "backend", s.Name, "position", i, "available", s.Available, "reason", s.Reason)
		}
	}
	return nil
}

// Close releases backends that hold resources.
func (e *Extractor) Close() error {
	var errs []error
	for _, chain := range e.chains {
		for _, b := range chain {
			if c, ok := b.(io.Closer); ok {
				if err := c.Close(); err != nil {
					errs = append(errs, fmt.Errorf("close %s: %w", b.Name(), err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Extract runs the chain of modality m over media. It never fails: when no
// backend succeeds the deterministic fallback descriptor is returned with
// UsedFallback set.
func (e *Extractor) Extract(ctx context.Context, m biometric.Modality, media Media) Result {
	ctx, span := e.tracer.Start(ctx, "extractor.Extract",
		trace.WithAttributes(attribute.String("biometric.modality", string(m)), attribute.Int("media.bytes", len(media.Data))))
	defer span.End()

	res := e.runChain(ctx, m, media)
	span.SetAttributes(
		attribute.String("extractor.backend", res.Backend),
		attribute.Bool("extractor.fallback", res.UsedFallback),
		attribute.Int("descriptor.length", len(res.Vector)),
	)
	return res
}

func (e *Extractor) runChain(ctx context.Context, m biometric.Modality, media Media) Result {
	if len(media.Data) > 0 {
		for _, b := range e.chains[m] {
			if !e.registry.Available(m, b.Name()) {
				continue
			}
			v, err := e.call(ctx, b, media)
			if err == nil {
				return Result{Vector: v, Backend: b.Name()}
			}
			if errors.Is(err, errNoSlot) {
				e.logger.Warn(ctx, "extraction slot not acquired", "modality", m, "error", err)
				break
			}
			e.logger.Debug(ctx, "extraction backend failed", "modality", m, "backend", b.Name(), "error", err)
		}
	}

	seed := SeedKey(media.Filename, media.Data)
	return Result{
		Vector:       FallbackVector(seed, FallbackLength),
		Backend:      FallbackBackendName,
		UsedFallback: true,
	}
}

var errNoSlot = errors.New("no extraction slot")

type outcome struct {
	v   biometric.Vector
	err error
}

// call runs one backend under the per-call timeout. The backend holds a
// pool slot until it actually returns, so a backend abandoned at its
// deadline still counts against MaxConcurrent.
func (e *Extractor) call(ctx context.Context, b Backend, media Media) (biometric.Vector, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", errNoSlot, err)
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer e.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("%w: panic: %v", common.ErrExtractionFailed, r)}
			}
		}()
		v, err := b.Extract(cctx, media)
		ch <- outcome{v: v, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s: %v", common.ErrExtractionTimeout, b.Name(), o.err)
			}
			return nil, fmt.Errorf("%w: %s: %v", common.ErrExtractionFailed, b.Name(), o.err)
		}
		if len(o.v) == 0 || !o.v.Finite() {
			return nil, fmt.Errorf("%w: %s: unusable descriptor", common.ErrExtractionFailed, b.Name())
		}
		return o.v, nil
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", common.ErrExtractionTimeout, b.Name())
		}
		return nil, fmt.Errorf("%w: %s: %v", common.ErrExtractionFailed, b.Name(), cctx.Err())
	}
}
