package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/cre-chat/internal"
)

// MarkdownExporter exports transcripts as Markdown documents
type MarkdownExporter struct{}

// Export writes the transcript as Markdown. Assistant content is already
// Markdown and is written as-is; user content is escaped.
func (e *MarkdownExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	chat := transcript.Chat
	_, _ = fmt.Fprintf(w, "# %s\n\n", chat.Title)

	_, _ = fmt.Fprintf(w, "**Chat:** %s  \n", chat.ID)
	if chat.ThreadID != "" {
		_, _ = fmt.Fprintf(w, "**Thread:** %s  \n", chat.ThreadID)
	}
	if !chat.Timestamp.IsZero() {
		_, _ = fmt.Fprintf(w, "**Updated:** %s  \n", chat.Timestamp.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(transcript.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range transcript.Messages {
		speaker := "You"
		content := escapeMarkdown(msg.Content)
		if msg.Role == internal.RoleAssistant {
			speaker = "Assistant"
			if msg.Agent != "" {
				speaker = fmt.Sprintf("Assistant (%s)", msg.Agent)
			}
			content = msg.Content
		}

		timestamp := ""
		if !msg.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" _%s_", msg.Timestamp.Format("2006-01-02 15:04"))
		}

		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", speaker, timestamp, content)

		if i < len(transcript.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// escapeMarkdown escapes emphasis markers outside fenced code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
