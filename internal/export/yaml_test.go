package export

import (
	"bytes"
	"testing"

	"github.com/iksnae/cre-chat/internal"
	"gopkg.in/yaml.v3"
)

func TestYAMLExporter_Export(t *testing.T) {
	tests := []struct {
		name       string
		transcript *internal.Transcript
		wantErr    bool
	}{
		{
			name:       "basic transcript",
			transcript: internal.CreateTestTranscript("chat_1"),
			wantErr:    false,
		},
		{
			name:       "empty transcript",
			transcript: internal.CreateTestTranscriptWithMessages("chat_2", []internal.Message{}),
			wantErr:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &YAMLExporter{}

			err := exporter.Export(tt.transcript, &buf)
			if (err != nil) != tt.wantErr {
				t.Errorf("YAMLExporter.Export() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				var got internal.Transcript
				if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
					t.Errorf("Output is not valid YAML: %v\nOutput: %s", err, buf.String())
					return
				}
				if got.Chat.ID != tt.transcript.Chat.ID {
					t.Errorf("chat id = %q, want %q", got.Chat.ID, tt.transcript.Chat.ID)
				}
				if len(got.Messages) != len(tt.transcript.Messages) {
					t.Errorf("got %d messages, want %d", len(got.Messages), len(tt.transcript.Messages))
				}
			}
		})
	}
}

func TestYAMLExporter_Extension(t *testing.T) {
	exporter := &YAMLExporter{}
	if got := exporter.Extension(); got != "yaml" {
		t.Errorf("YAMLExporter.Extension() = %v, want yaml", got)
	}
}
