package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/cre-chat/internal"
)

// JSONLExporter exports transcripts as JSONL, one message per line
type JSONLExporter struct{}

// Export writes one JSON object per message, tagged with the chat and thread
func (e *JSONLExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range transcript.Messages {
		obj := map[string]interface{}{
			"chat_id":   transcript.Chat.ID,
			"thread_id": transcript.Chat.ThreadID,
			"role":      msg.Role,
			"content":   msg.Content,
		}
		if msg.Agent != "" {
			obj["agent"] = msg.Agent
		}
		if !msg.Timestamp.IsZero() {
			obj["timestamp"] = msg.Timestamp.Format(time.RFC3339Nano)
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
