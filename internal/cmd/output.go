package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/s3compat/pkg/provider"
)

// printer renders command results as JSON or YAML documents.
type printer struct {
	w      io.Writer
	format string
}

func (p *printer) print(v any) error {
	switch p.format {
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
}

// views normalizes metadata entries for output.
func views[M provider.Metadata](entries []M) []provider.View {
	out := make([]provider.View, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.View())
	}
	return out
}

// writeResult is the output of commands that create or replace an entry.
type writeResult struct {
	Created bool          `json:"created" yaml:"created"`
	Entry   provider.View `json:"entry" yaml:"entry"`
}
