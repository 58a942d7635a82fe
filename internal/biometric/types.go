// Package biometric holds the domain vocabulary shared by the extractor,
// matcher and server layers: modalities, verification phases, trial intent
// and the descriptor vector itself.
package biometric

import (
	"fmt"
	"math"
	"strings"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"gonum.org/v1/gonum/floats"
)

// Modality identifies the kind of biometric sample.
type Modality string

const (
	ModalityFace        Modality = "face"
	ModalityVoice       Modality = "voice"
	ModalityFingerprint Modality = "fingerprint"
)

// ParseModality validates s against the known modalities.
func ParseModality(s string) (Modality, error) {
	switch m := Modality(strings.ToLower(strings.TrimSpace(s))); m {
	case ModalityFace, ModalityVoice, ModalityFingerprint:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown modality %q", common.ErrValidation, s)
	}
}

// Phase is the point of an exam session at which a verification happened.
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseEnd    Phase = "end"
	PhaseRandom Phase = "random"
)

// ParsePhase validates s against the known phases.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case PhaseStart, PhaseEnd, PhaseRandom:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown phase %q", common.ErrValidation, s)
	}
}

// Trial tags the intent of a verification attempt. Genuine attempts feed the
// false reject rate, impostor attempts the false accept rate.
type Trial string

const (
	TrialGenuine  Trial = "genuine"
	TrialImpostor Trial = "impostor"
)

// ParseTrial validates s. An empty value means genuine.
func ParseTrial(s string) (Trial, error) {
	switch t := Trial(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TrialGenuine, nil
	case TrialGenuine, TrialImpostor:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown trial %q", common.ErrValidation, s)
	}
}

// Vector is a biometric descriptor. Its length and semantics depend on the
// backend that produced it.
type Vector []float64

// Finite reports whether every component is a finite number.
func (v Vector) Finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Normalize scales v to unit L2 norm in place. Vectors whose norm does not
// exceed eps are left untouched.
func (v Vector) Normalize(eps float64) Vector {
	norm := floats.Norm(v, 2)
	if norm <= eps {
		return v
	}
	floats.Scale(1/norm, v)
	return v
}

// Fit truncates or zero-pads v to exactly n components.
func (v Vector) Fit(n int) Vector {
	out := make(Vector, n)
	copy(out, v)
	return out
}
