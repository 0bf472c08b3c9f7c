package internal

import (
	"time"
)

// CreateTestTranscript creates a transcript with a two-message exchange
func CreateTestTranscript(id string) *Transcript {
	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	return CreateTestTranscriptWithMessages(id, []Message{
		{
			Role:      RoleUser,
			Content:   "What are industrial cap rates in Phoenix?",
			Timestamp: ts,
		},
		{
			Role:      RoleAssistant,
			Content:   "Industrial cap rates in Phoenix are around 5.5%.",
			Timestamp: ts.Add(4 * time.Second),
			Agent:     "market",
		},
	})
}

// CreateTestTranscriptWithMessages creates a transcript with custom messages
func CreateTestTranscriptWithMessages(id string, messages []Message) *Transcript {
	chat := SavedChat{
		ID:          id,
		Title:       DeriveTitle(messages),
		LastMessage: DerivePreview(messages),
		ThreadID:    "thread_" + id,
	}
	if n := len(messages); n > 0 {
		chat.Timestamp = messages[n-1].Timestamp
	}
	return &Transcript{Chat: chat, Messages: messages}
}
