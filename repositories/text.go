package repositories

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ValidateText enforces the message body rules shared by every store:
// valid UTF-8, not blank, at most maxLength bytes.
func ValidateText(text string, maxLength int) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text is not valid UTF-8", errors.ErrInvalidMessage)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is empty", errors.ErrInvalidMessage)
	}
	if maxLength > 0 && len(text) > maxLength {
		return fmt.Errorf("%w: text exceeds %d bytes", errors.ErrInvalidMessage, maxLength)
	}
	return nil
}

// maxIdentityLength matches the identity columns of the SQL schemas.
const maxIdentityLength = 255

func validateAppend(sender string, receiver *string, text string, maxLength int) error {
	if err := validateIdentity("sender", sender); err != nil {
		return err
	}
	if receiver != nil {
		if err := validateIdentity("receiver", *receiver); err != nil {
			return err
		}
	}
	return ValidateText(text, maxLength)
}

func validateIdentity(role, identity string) error {
	switch {
	case identity == "":
		return fmt.Errorf("%w: missing %s", errors.ErrInvalidMessage, role)
	case !utf8.ValidString(identity):
		return fmt.Errorf("%w: %s is not valid UTF-8", errors.ErrInvalidMessage, role)
	case len(identity) > maxIdentityLength:
		return fmt.Errorf("%w: %s exceeds %d bytes", errors.ErrInvalidMessage, role, maxIdentityLength)
	}
	return nil
}

// noneAfter reports whether sinceID is past the highest id a store can hold.
func noneAfter(sinceID *uint64, highest uint64) bool {
	return sinceID != nil && *sinceID >= highest
}

// monotonicClock never goes backwards, even if the wall clock does.
// Callers must hold the store lock.
type monotonicClock struct {
	last time.Time
	now  func() time.Time
}

func (c *monotonicClock) next() time.Time {
	at := c.now().UTC()
	if at.Before(c.last) {
		at = c.last
	}
	return at
}

func (c *monotonicClock) commit(at time.Time) {
	c.last = at
}
