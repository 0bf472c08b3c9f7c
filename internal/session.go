package internal

import "time"

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents one entry of a conversation. A message with
// IsStreaming set is still receiving content and is not part of the
// finalized list yet.
type Message struct {
	Role        Role      `json:"role" yaml:"role"`
	Content     string    `json:"content" yaml:"content"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Agent       string    `json:"agent,omitempty" yaml:"agent,omitempty"`
	IsStreaming bool      `json:"isStreaming,omitempty" yaml:"is_streaming,omitempty"`
}

// SavedChat is the index entry describing one persisted conversation
type SavedChat struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	LastMessage string    `json:"lastMessage" yaml:"last_message"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	ThreadID    string    `json:"threadId" yaml:"thread_id"`
}

// ChatRecord is the persisted body of one conversation
type ChatRecord struct {
	Messages []Message `json:"messages" yaml:"messages"`
	ThreadID string    `json:"threadId" yaml:"thread_id"`
}

// Transcript pairs an index entry with its messages for display and export
type Transcript struct {
	Chat     SavedChat `json:"chat" yaml:"chat"`
	Messages []Message `json:"messages" yaml:"messages"`
}
