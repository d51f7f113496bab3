package output

import (
	"encoding/json"
	"io"

	"github.com/mkrell/chaincheck/internal/report"
)

// JSONRenderer emits structured run data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Document captures the JSON output schema.
type Document struct {
	Run       *report.Bundle `json:"run"`
	ReportURL string         `json:"report_url,omitempty"`
}

// Render encodes the document as indented JSON.
func (j *JSONRenderer) Render(doc Document) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
