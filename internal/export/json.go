package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/cre-chat/internal"
)

// JSONExporter exports transcripts as pretty-printed JSON
type JSONExporter struct{}

// Export writes the whole transcript as one JSON document
func (e *JSONExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(transcript)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
