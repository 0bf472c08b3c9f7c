package internal

import (
	"fmt"
	"time"
)

// Deduplicator suppresses repeated submits and repeated final messages
type Deduplicator struct {
	lastSubmit string
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// SubmitKey identifies one submit of message at now, at millisecond resolution
func SubmitKey(message string, now time.Time) string {
	return fmt.Sprintf("%s-%d", message, now.UnixMilli())
}

// SeenSubmit records the submit of message at now and reports whether it
// repeats the previous submit.
func (d *Deduplicator) SeenSubmit(message string, now time.Time) bool {
	key := SubmitKey(message, now)
	if key == d.lastSubmit {
		return true
	}
	d.lastSubmit = key
	return false
}

// Reset forgets the previous submit
func (d *Deduplicator) Reset() {
	d.lastSubmit = ""
}

// IsDuplicateFinal reports whether final repeats the last finalized
// assistant message of messages.
func IsDuplicateFinal(messages []Message, final Message) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.Role == RoleAssistant &&
		final.Role == RoleAssistant &&
		last.Content == final.Content &&
		!last.IsStreaming
}
