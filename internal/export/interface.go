package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/cre-chat/internal"
)

// Formats lists the accepted export format names
var Formats = []string{"jsonl", "md", "yaml", "json"}

// Exporter writes one saved conversation in a single format
type Exporter interface {
	Export(transcript *internal.Transcript, w io.Writer) error
	Extension() string
}

// NewExporter returns the exporter for format. Names are case-insensitive;
// "markdown" and "yml" are accepted as aliases.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(Formats, ", "))
	}
}
