// Package services contains server-side business logic shared by the gRPC
// and HTTP transports: enrollment, verification, exam sessions and the
// verification ledger.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
)

// Extractor turns media into descriptors. *extractor.Extractor implements it.
type Extractor interface {
	Supports(m biometric.Modality) bool
	Extract(ctx context.Context, m biometric.Modality, media extractor.Media) extractor.Result
}

// DescriptorCipher seals and opens descriptors. *cryptox.Cipher implements it.
type DescriptorCipher interface {
	Seal(v biometric.Vector) ([]byte, error)
	Open(blob []byte) (biometric.Vector, error)
}

// checkCapture validates the parts of a request every capture operation
// shares. Empty media is accepted: the extractor answers it with the
// fallback descriptor.
func checkCapture(ex Extractor, userID int64, m biometric.Modality, media extractor.Media) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user_id must be positive", common.ErrValidation)
	}
	if !ex.Supports(m) {
		return fmt.Errorf("%w: modality %q is not supported", common.ErrValidation, m)
	}
	return nil
}

// Bundle groups the services a transport serves.
type Bundle struct {
	Enrollment   *EnrollmentService
	Verification *VerificationService
	Sessions     *SessionService
	Ledger       *LedgerService
}
