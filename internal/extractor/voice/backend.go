package voice

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
)

const (
	// MFCCBackendName is the registry name of the voice backend.
	MFCCBackendName = "voice-mfcc"
	// MFCCLength is the descriptor length: 40 coefficients plus first and
	// second deltas, mean-pooled over time.
	MFCCLength = 3 * nMFCC
)

// MFCCBackend describes a voice sample by its mean cepstrum and the mean of
// its first and second temporal derivatives.
type MFCCBackend struct {
	normEps float64
}

var _ extractor.Backend = (*MFCCBackend)(nil)

func NewMFCCBackend(normEps float64) *MFCCBackend {
	return &MFCCBackend{normEps: normEps}
}

func (b *MFCCBackend) Name() string { return MFCCBackendName }

func (b *MFCCBackend) Extract(ctx context.Context, m extractor.Media) (biometric.Vector, error) {
	samples, rate, err := decodeMono(m.Data)
	if err != nil {
		return nil, err
	}
	y := resample(samples, rate, sampleRate)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := mfcc(ctx, y)
	if err != nil {
		return nil, err
	}
	d1 := delta(c, deltaWidth)
	d2 := delta(d1, deltaWidth)

	v := make(biometric.Vector, 0, MFCCLength)
	v = append(v, rowMeans(c)...)
	v = append(v, rowMeans(d1)...)
	v = append(v, rowMeans(d2)...)
	if !v.Finite() {
		return nil, fmt.Errorf("%w: non-finite cepstrum", common.ErrExtractionFailed)
	}
	return v.Normalize(b.normEps), nil
}
