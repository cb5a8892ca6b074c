// Per-run report for callers and the CLI.
//
// The report is what the orchestrating side gets to see: whether the file
// changed, which warnings accumulated, and xxh3 checksums of the final
// streams so repeated runs can be compared without re-reading the document.
package hwpstyle

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
)

// Report summarises one Run over a document.
type Report struct {
	Path     string            `json:"path"`
	Changed  bool              `json:"changed"`
	Sections int               `json:"sections"`
	Streams  map[string]string `json:"streams"` // stream name → xxh3 of final bytes
	Warnings []string          `json:"warnings,omitempty"`
}

// JSON renders the report as a single JSON object.
func (r *Report) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Run executes the full pipeline on one document — style id rewrite,
// transplant, face repair — and returns a report. Warnings are reset at the
// start so the report covers exactly this run.
func (e *Engine) Run(path string) (*Report, error) {
	e.ResetWarnings()

	changed, err := e.PostProcessStyleIDs(path)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Path:    path,
		Changed: changed,
		Streams: make(map[string]string),
	}

	c, err := OpenContainer(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	sections := c.Sections()
	report.Sections = len(sections)
	for _, name := range append([]string{streamDocInfo}, sections...) {
		data, err := c.ReadStream(name)
		if err != nil {
			return nil, err
		}
		report.Streams[name] = fmt.Sprintf("%016x", xxh3.Hash(data))
	}
	report.Warnings = e.Warnings()
	return report, nil
}
