package models

import (
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
)

// Event records the outcome of one verification inside a session.
type Event struct {
	ID        int64
	SessionID int64
	UserID    int64
	Modality  biometric.Modality
	Phase     biometric.Phase
	Match     bool
	Score     float64
	Threshold float64
	Metric    string
	MockUsed  bool
	Trial     biometric.Trial
	CreatedAt time.Time
}

// EventStats aggregates the events of one session for error-rate metrics.
type EventStats struct {
	Total            int
	Genuine          int
	GenuineRejected  int
	Impostor         int
	ImpostorAccepted int
}
