// Package common defines shared constants and sentinel errors used across
// biokeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Request validation: bad enum value, failed liveness gate, malformed input.
	ErrValidation = errors.New("validation error")

	// Stored descriptor could not be opened. Never downgraded to a non-match.
	ErrDecryption = errors.New("decryption error")

	// Extraction backend errors. These stay inside the extractor chain and are
	// never returned to service callers.
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrExtractionTimeout  = errors.New("extraction timeout")
	ErrBackendUnavailable = errors.New("backend unavailable")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
