package voice

import (
	"context"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

const (
	sampleRate = 16000
	nFFT       = 2048
	hopLength  = 512
	nMels      = 128
	nMFCC      = 40
	deltaWidth = 9
	topDB      = 80.0
)

// ctxCheckEvery is how many frames are processed between context checks.
const ctxCheckEvery = 32

// mfcc returns an nMFCC × frames matrix of cepstral coefficients. Frames
// are reduced to mel energies as they are transformed, so only nMels values
// per frame are kept.
func mfcc(ctx context.Context, y []float64) ([][]float64, error) {
	logMel, err := logMelFrames(ctx, y)
	if err != nil {
		return nil, err
	}

	peak := math.Inf(-1)
	for _, row := range logMel {
		for _, v := range row {
			peak = math.Max(peak, v)
		}
	}
	floor := peak - topDB

	frames := len(logMel)
	out := make([][]float64, nMFCC)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for t, row := range logMel {
		if t%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for m := range row {
			row[m] = math.Max(row[m], floor)
		}
		coeffs := dct2(row, nMFCC)
		for c := range coeffs {
			out[c][t] = coeffs[c]
		}
	}
	return out, nil
}

// logMelFrames computes the power spectrum of each centered, Hann-windowed
// frame and folds it straight into log mel energies (dB).
func logMelFrames(ctx context.Context, y []float64) ([][]float64, error) {
	pad := nFFT / 2
	padded := make([]float64, len(y)+2*pad)
	copy(padded[pad:], y)

	frames := 1 + (len(padded)-nFFT)/hopLength
	window := hann(nFFT)
	mel := melFilterBank(sampleRate, nFFT, nMels)
	fft := fourier.NewFFT(nFFT)
	frame := make([]float64, nFFT)
	power := make([]float64, nFFT/2+1)
	var coeffs []complex128

	out := make([][]float64, frames)
	for t := 0; t < frames; t++ {
		if t%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		start := t * hopLength
		for i := range frame {
			frame[i] = padded[start+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			a := cmplx.Abs(c)
			power[k] = a * a
		}

		row := make([]float64, nMels)
		for m, filter := range mel {
			row[m] = 10 * math.Log10(math.Max(floats.Dot(filter, power), 1e-10))
		}
		out[t] = row
	}
	return out, nil
}

// hann returns a periodic Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func hzToMel(f float64) float64 { return 2595 * math.Log10(1+f/700) }
func melToHz(m float64) float64 { return 700 * (math.Pow(10, m/2595) - 1) }

// melFilterBank builds nMels area-normalized triangular filters spanning
// 0 Hz to Nyquist over the nFFT/2+1 frequency bins.
func melFilterBank(sr, nfft, mels int) [][]float64 {
	bins := nfft/2 + 1
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sr) / float64(nfft)
	}

	top := hzToMel(float64(sr) / 2)
	edges := make([]float64, mels+2)
	for i := range edges {
		edges[i] = melToHz(top * float64(i) / float64(mels+1))
	}

	bank := make([][]float64, mels)
	for m := range bank {
		lo, mid, hi := edges[m], edges[m+1], edges[m+2]
		norm := 2 / (hi - lo)
		row := make([]float64, bins)
		for k, f := range freqs {
			var w float64
			switch {
			case f > lo && f <= mid:
				w = (f - lo) / (mid - lo)
			case f > mid && f < hi:
				w = (hi - f) / (hi - mid)
			}
			row[k] = w * norm
		}
		bank[m] = row
	}
	return bank
}

// dct2 returns the first n coefficients of the orthonormal DCT-II of x.
func dct2(x []float64, n int) []float64 {
	size := float64(len(x))
	out := make([]float64, n)
	for k := range out {
		var s float64
		for i, v := range x {
			s += v * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*size))
		}
		scale := math.Sqrt(2 / size)
		if k == 0 {
			scale = math.Sqrt(1 / size)
		}
		out[k] = s * scale
	}
	return out
}

// delta computes the local regression slope of every row over a window of
// width frames, replicating edge frames.
func delta(rows [][]float64, width int) [][]float64 {
	half := width / 2
	var denom float64
	for n := 1; n <= half; n++ {
		denom += float64(2 * n * n)
	}

	out := make([][]float64, len(rows))
	for r, row := range rows {
		frames := len(row)
		d := make([]float64, frames)
		at := func(t int) float64 { return row[max(0, min(frames-1, t))] }
		for t := range row {
			var s float64
			for n := 1; n <= half; n++ {
				s += float64(n) * (at(t+n) - at(t-n))
			}
			d[t] = s / denom
		}
		out[r] = d
	}
	return out
}

func rowMeans(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for r, row := range rows {
		var s float64
		for _, v := range row {
			s += v
		}
		if len(row) > 0 {
			out[r] = s / float64(len(row))
		}
	}
	return out
}
