// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
)

// Template is one enrolled biometric descriptor. Rows are only ever
// inserted; re-enrollment adds a newer row and the highest ID wins.
type Template struct {
	ID       int64
	UserID   int64
	Modality biometric.Modality
	// EncryptedDescriptor is the sealed descriptor; its length and metric are
	// only known after opening it.
	EncryptedDescriptor []byte
	CreatedAt           time.Time
	DeviceInfo          string
	// MediaRef is the archive object key of the sealed raw upload, empty when
	// archiving is off.
	MediaRef string
}
