// Package matcher decides whether a freshly extracted descriptor matches an
// enrolled one. It is pure: no I/O, deterministic for identical inputs.
//
// The metric is chosen by the stored descriptor's length. 128-component
// descriptors live in a Euclidean embedding space and match when the L2
// distance is below the threshold; every other length is compared by cosine
// similarity and matches when the similarity reaches the threshold. Shape
// mismatches never match.
package matcher

import (
	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"gonum.org/v1/gonum/floats"
)

// Metric names the distance function used for a decision.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// EuclideanLength is the descriptor length that selects the Euclidean metric.
const EuclideanLength = 128

const (
	DefaultEuclideanThreshold   = 0.6
	DefaultCosineThreshold      = 0.3
	DefaultVoiceCosineThreshold = 0.3
	DefaultCosineEpsilon        = 1e-8
)

// Policy holds the thresholds applied to one modality.
type Policy struct {
	EuclideanThreshold float64
	CosineThreshold    float64
	// CosineEpsilon guards the cosine denominator against zero norms.
	CosineEpsilon float64
	// ForceCosine skips length-based metric selection. Voice descriptors are
	// always compared by cosine similarity.
	ForceCosine bool
}

// FacePolicy returns the default face policy.
func FacePolicy() Policy {
	return Policy{
		EuclideanThreshold: DefaultEuclideanThreshold,
		CosineThreshold:    DefaultCosineThreshold,
		CosineEpsilon:      DefaultCosineEpsilon,
	}
}

// VoicePolicy returns the default voice policy.
func VoicePolicy() Policy {
	return Policy{
		EuclideanThreshold: DefaultEuclideanThreshold,
		CosineThreshold:    DefaultVoiceCosineThreshold,
		CosineEpsilon:      DefaultCosineEpsilon,
		ForceCosine:        true,
	}
}

// Decision is the auditable outcome of one comparison.
type Decision struct {
	Match     bool
	Score     float64
	Threshold float64
	Metric    Metric
	// Comparable is false when the two descriptors had different shapes and
	// the comparison was declared invalid.
	Comparable bool
}

// Decide compares input against stored under p.
func (p Policy) Decide(input, stored biometric.Vector) Decision {
	if !p.ForceCosine && len(stored) == EuclideanLength {
		d := Decision{Metric: MetricEuclidean, Threshold: p.EuclideanThreshold}
		if len(input) != len(stored) {
			return d
		}
		d.Comparable = true
		d.Score = floats.Distance(input, stored, 2)
		d.Match = d.Score < p.EuclideanThreshold
		return d
	}

	d := Decision{Metric: MetricCosine, Threshold: p.CosineThreshold}
	if len(input) != len(stored) {
		return d
	}
	d.Comparable = true
	denom := floats.Norm(input, 2)*floats.Norm(stored, 2) + p.CosineEpsilon
	if denom == 0 {
		return d
	}
	d.Score = floats.Dot(input, stored) / denom
	d.Match = d.Score >= p.CosineThreshold
	return d
}

// Engine routes decisions to the policy of each modality.
type Engine struct {
	policies map[biometric.Modality]Policy
	fallback Policy
}

// NewEngine builds an Engine. Modalities without an explicit policy use the
// face policy.
func NewEngine(face, voice Policy) *Engine {
	return &Engine{
		policies: map[biometric.Modality]Policy{
			biometric.ModalityFace:  face,
			biometric.ModalityVoice: voice,
		},
		fallback: face,
	}
}

// Policy returns the policy applied to m.
func (e *Engine) Policy(m biometric.Modality) Policy {
	if p, ok := e.policies[m]; ok {
		return p
	}
	return e.fallback
}

// Decide compares input against stored using the policy of m.
func (e *Engine) Decide(m biometric.Modality, input, stored biometric.Vector) Decision {
	return e.Policy(m).Decide(input, stored)
}
