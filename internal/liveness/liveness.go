// Package liveness implements the frame-difference motion heuristic used as
// the liveness gate for exam sessions. It detects a static photo held in
// front of the camera and nothing more.
package liveness

import (
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor/face"
)

// DefaultMotionThreshold is the mean absolute gray-level difference, in
// [0, 1], above which two frames count as live.
const DefaultMotionThreshold = 0.02

const frameSize = 128

// Result is the outcome of a check.
type Result struct {
	LivenessOK    bool
	LivenessScore float64
}

// Checker compares two frames captured a moment apart.
type Checker struct {
	threshold float64
}

// NewChecker returns a Checker. A negative threshold uses the default; zero
// accepts every pair of decodable frames.
func NewChecker(threshold float64) *Checker {
	if threshold < 0 {
		threshold = DefaultMotionThreshold
	}
	return &Checker{threshold: threshold}
}

// Threshold is the motion score a session start requires.
func (c *Checker) Threshold() float64 { return c.threshold }

// FrameDifference scores the motion between frames a and b.
func (c *Checker) FrameDifference(a, b []byte) (Result, error) {
	ga, err := face.DecodeGray(a, frameSize)
	if err != nil {
		return Result{}, fmt.Errorf("frame_a: %w", err)
	}
	gb, err := face.DecodeGray(b, frameSize)
	if err != nil {
		return Result{}, fmt.Errorf("frame_b: %w", err)
	}
	if len(ga.Pix) != len(gb.Pix) {
		return Result{}, fmt.Errorf("%w: frame size mismatch", common.ErrValidation)
	}

	var sum float64
	for i := range ga.Pix {
		d := int(ga.Pix[i]) - int(gb.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += float64(d)
	}
	score := sum / float64(len(ga.Pix)) / 255
	return Result{LivenessOK: score >= c.threshold, LivenessScore: score}, nil
}
