package models

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

type ScheduleType string

const (
	ScheduleStartEnd ScheduleType = "start_end"
	ScheduleInterval ScheduleType = "interval"
)

// Session is a timed exam attempt. Status moves from active to completed
// exactly once.
type Session struct {
	ID              int64
	UserID          int64
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationMinutes *int
	Status          SessionStatus
	ScheduleType    ScheduleType
	IntervalMinutes *int
}
