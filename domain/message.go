// Package domain contains core concepts of the relay.
// This file defines Message records and their visibility rules.
// Messages are immutable once the store has assigned their id.
package domain

import (
	"strings"
	"time"
)

// Message is a persisted chat message.
// A nil ReceiverID means the message is a broadcast.
type Message struct {
	ID         uint64
	SenderID   string
	ReceiverID *string
	Text       string
	CreatedAt  time.Time
}

func (m Message) IsBroadcast() bool {
	return m.ReceiverID == nil
}

// VisibleTo reports whether identity may read the message:
// broadcasts are visible to everyone, direct messages to both ends.
func (m Message) VisibleTo(identity string) bool {
	if m.IsBroadcast() {
		return true
	}
	return m.SenderID == identity || *m.ReceiverID == identity
}

// NormalizeReceiver turns a blank receiver into a broadcast.
func NormalizeReceiver(receiver *string) *string {
	if receiver == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*receiver)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
