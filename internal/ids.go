package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewStreamID returns a unique identifier for one server-push stream
func NewStreamID() string {
	return "stream_" + uuid.NewString()
}

// NewThreadID returns a fresh backend conversation thread identifier
func NewThreadID() string {
	return "thread_" + randomToken(9)
}

// NewChatID returns a saved-chat identifier derived from now
func NewChatID(now time.Time) string {
	return fmt.Sprintf("chat_%d_%s", now.UnixMilli(), randomToken(5))
}

// randomToken returns n lowercase hex characters, n <= 32
func randomToken(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
