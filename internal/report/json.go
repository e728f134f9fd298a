// Package report provides output formatters for boundfit run results
// and discovered assertions in JSON and human-readable text formats.
package report

import (
	"encoding/json"
	"io"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// JSONReport is the top-level JSON output structure of a fit run.
type JSONReport struct {
	Version string `json:"version"`
	taxonomy.RunStats
}

// SpecsReport is the top-level JSON output structure of a scan.
type SpecsReport struct {
	Version    string                   `json:"version"`
	Assertions []taxonomy.AssertionSpec `json:"assertions"`
}

// WriteJSON writes run results as formatted JSON to the writer.
func WriteJSON(w io.Writer, stats *taxonomy.RunStats, version string) error {
	report := JSONReport{Version: version}
	if stats != nil {
		report.RunStats = *stats
	}
	if report.Results == nil {
		report.Results = []taxonomy.SpecResult{}
	}
	if report.Metadata.Warnings == nil {
		report.Metadata.Warnings = []string{}
	}
	return encode(w, report)
}

// WriteSpecsJSON writes discovered assertions as formatted JSON.
func WriteSpecsJSON(w io.Writer, specs []taxonomy.AssertionSpec, version string) error {
	if specs == nil {
		specs = []taxonomy.AssertionSpec{}
	}
	return encode(w, SpecsReport{Version: version, Assertions: specs})
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
