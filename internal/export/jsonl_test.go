package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/iksnae/cre-chat/internal"
)

func TestJSONLExporter_Export(t *testing.T) {
	tests := []struct {
		name       string
		transcript *internal.Transcript
		wantLines  int
	}{
		{
			name:       "basic transcript",
			transcript: internal.CreateTestTranscript("chat_1"),
			wantLines:  2,
		},
		{
			name:       "empty transcript",
			transcript: internal.CreateTestTranscriptWithMessages("chat_2", []internal.Message{}),
			wantLines:  0,
		},
		{
			name: "message without timestamp or agent",
			transcript: internal.CreateTestTranscriptWithMessages("chat_3", []internal.Message{
				{Role: internal.RoleUser, Content: "hi"},
			}),
			wantLines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &JSONLExporter{}

			if err := exporter.Export(tt.transcript, &buf); err != nil {
				t.Fatalf("JSONLExporter.Export() error = %v", err)
			}

			lines := 0
			scanner := bufio.NewScanner(&buf)
			for scanner.Scan() {
				var obj map[string]interface{}
				if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
					t.Fatalf("line %d is not valid JSON: %v", lines, err)
				}
				if obj["chat_id"] != tt.transcript.Chat.ID {
					t.Errorf("chat_id = %v, want %q", obj["chat_id"], tt.transcript.Chat.ID)
				}
				msg := tt.transcript.Messages[lines]
				if obj["content"] != msg.Content {
					t.Errorf("content = %v, want %q", obj["content"], msg.Content)
				}
				if _, ok := obj["agent"]; ok != (msg.Agent != "") {
					t.Errorf("agent presence = %v, want %v", ok, msg.Agent != "")
				}
				if _, ok := obj["timestamp"]; ok != !msg.Timestamp.IsZero() {
					t.Errorf("timestamp presence = %v", ok)
				}
				lines++
			}

			if lines != tt.wantLines {
				t.Errorf("got %d lines, want %d", lines, tt.wantLines)
			}
		})
	}
}

func TestJSONLExporter_Extension(t *testing.T) {
	exporter := &JSONLExporter{}
	if got := exporter.Extension(); got != "jsonl" {
		t.Errorf("JSONLExporter.Extension() = %v, want jsonl", got)
	}
}
