package domain

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is the handle returned when a live connection registers.
// It references an identity, never a specific message.
type Subscription struct {
	ID           uuid.UUID
	Identity     string
	RegisteredAt time.Time
}

// FanoutReport summarizes one fanout pass.
type FanoutReport struct {
	Delivered int
	Dropped   int
}
