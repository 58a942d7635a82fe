// Package remote adapts an HTTP model sidecar to the extractor chain.
//
// The sidecar receives the raw upload as the request body and answers with
// a JSON object holding the descriptor:
//
//	POST /extract           Content-Type: application/octet-stream
//	X-Filename: john_a.jpg
//
//	200 {"embedding": [0.12, -0.03, ...]}
//	422 {"error": "no face detected"}
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
)

const maxResponseBytes = 1 << 20

// Config describes one sidecar.
type Config struct {
	Name string
	// URL receives extraction requests.
	URL string
	// HealthURL is probed once at startup; empty means URL + "/healthz"
	// relative to the URL's base path.
	HealthURL string
	// Length, when positive, is the descriptor length the sidecar must return.
	Length int
	// Normalize L2-normalizes returned descriptors.
	Normalize bool
	NormEps   float64
	Timeout   time.Duration
}

// Backend calls a model sidecar over HTTP.
type Backend struct {
	cfg    Config
	client *http.Client
}

var (
	_ extractor.Backend = (*Backend)(nil)
	_ extractor.Prober  = (*Backend)(nil)
	_ io.Closer         = (*Backend)(nil)
)

// New returns a backend for cfg. A nil client uses a dedicated client with
// cfg.Timeout.
func New(cfg Config, client *http.Client) *Backend {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Backend{cfg: cfg, client: client}
}

func (b *Backend) Name() string { return b.cfg.Name }

type response struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error"`
}

func (b *Backend) Extract(ctx context.Context, m extractor.Media) (biometric.Vector, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(m.Data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if m.Filename != "" {
		req.Header.Set("X-Filename", m.Filename)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response (status %d): %v", common.ErrExtractionFailed, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", common.ErrExtractionFailed, resp.StatusCode, body.Error)
	}

	v := biometric.Vector(body.Embedding)
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", common.ErrExtractionFailed)
	}
	if b.cfg.Length > 0 && len(v) != b.cfg.Length {
		return nil, fmt.Errorf("%w: embedding length %d, want %d", common.ErrExtractionFailed, len(v), b.cfg.Length)
	}
	if b.cfg.Normalize {
		v = v.Normalize(b.cfg.NormEps)
	}
	return v, nil
}

// Probe checks the health endpoint of the sidecar.
func (b *Backend) Probe(ctx context.Context) error {
	if b.cfg.URL == "" {
		return fmt.Errorf("%w: no url configured", common.ErrBackendUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.healthURL(), nil)
	if err != nil {
		return fmt.Errorf("build probe: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health status %d", common.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

func (b *Backend) healthURL() string {
	if b.cfg.HealthURL != "" {
		return b.cfg.HealthURL
	}
	base := b.cfg.URL
	if i := strings.LastIndex(base, "/"); i > len("https://") {
		base = base[:i]
	}
	return base + "/healthz"
}

// Close drops idle connections to the sidecar.
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}
