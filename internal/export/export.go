// Package export writes conversation transcripts in the formats offered by
// the dashboard download and the dashctl CLI.
package export

import (
	"fmt"
	"io"

	"github.com/jmau0/riobutcher/internal/transcript"
)

// Transcript is one conversation ready to be written out.
type Transcript struct {
	SessionID  string            `json:"session_id" yaml:"session_id"`
	ClientName string            `json:"client_name,omitempty" yaml:"client_name,omitempty"`
	Phone      string            `json:"phone,omitempty" yaml:"phone,omitempty"`
	Turns      []transcript.Turn `json:"turns" yaml:"turns"`
}

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "", "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "text", "txt":
		return &TextExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md, text)", format)
	}
}
