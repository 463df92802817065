package models

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a time-ordered unique identifier (UUIDv7).
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Now is the timestamp used for created_at and updated_at.
func Now() time.Time {
	return time.Now().UTC()
}
