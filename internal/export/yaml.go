package export

import (
	"io"

	"github.com/iksnae/cre-chat/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports transcripts as YAML
type YAMLExporter struct{}

// Export writes the whole transcript as one YAML document
func (e *YAMLExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(transcript)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
