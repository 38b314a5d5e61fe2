// Package semgrep parses the raw JSON report of the external scanner
// into findings.
package semgrep

import (
	"encoding/json"
	"fmt"

	"github.com/CZERTAINLY/Prospector/internal/model"
)

// Report mirrors the subset of the scanner output the pipeline consumes.
type Report struct {
	Results []Result `json:"results"`
}

type Result struct {
	CheckID string `json:"check_id"`
	Path    string `json:"path"`
	Start   struct {
		Line *int `json:"line"`
	} `json:"start"`
	Extra struct {
		Lines    string `json:"lines"`
		Language string `json:"language"`
	} `json:"extra"`
}

// Parse converts the raw report text into findings. Malformed text is
// an error, never an empty result: the caller must not mistake a broken
// report for a clean scan. A missing line number maps to -1.
func Parse(raw string) ([]model.Finding, error) {
	var report Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("parsing scanner report: %w", err)
	}

	findings := make([]model.Finding, 0, len(report.Results))
	for _, r := range report.Results {
		line := -1
		if r.Start.Line != nil {
			line = *r.Start.Line
		}
		findings = append(findings, model.Finding{
			RuleID:   r.CheckID,
			Path:     r.Path,
			Line:     line,
			Language: r.Extra.Language,
			Snippet:  r.Extra.Lines,
		})
	}
	return findings, nil
}
