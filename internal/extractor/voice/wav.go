// Package voice implements the MFCC voice descriptor backend.
package voice

import (
	"bytes"
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/go-audio/wav"
)

// decodeMono decodes a PCM WAV file into mono samples scaled to [-1, 1].
func decodeMono(data []byte) ([]float64, int, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a WAV file", common.ErrValidation)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: decode wav: %v", common.ErrValidation, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: wav has no format", common.ErrValidation)
	}

	channels := max(buf.Format.NumChannels, 1)
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(d.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, 0, fmt.Errorf("%w: unsupported bit depth %d", common.ErrValidation, depth)
	}
	scale := float64(int64(1) << (depth - 1))

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, 0, fmt.Errorf("%w: wav has no samples", common.ErrValidation)
	}
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			s := float64(buf.Data[i*channels+c])
			if depth == 8 {
				// 8-bit PCM is unsigned.
				s -= 128
			}
			sum += s
		}
		out[i] = sum / float64(channels) / scale
	}
	return out, buf.Format.SampleRate, nil
}

// resample converts samples from rate `from` to rate `to` by linear
// interpolation.
func resample(x []float64, from, to int) []float64 {
	if from == to || len(x) == 0 {
		return x
	}
	n := int(float64(len(x)) * float64(to) / float64(from))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(x)-1 {
			out[i] = x[len(x)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = x[j]*(1-frac) + x[j+1]*frac
	}
	return out
}
