// Package report assembles the merged scan report served over the API.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/CZERTAINLY/Prospector/internal/model"
)

type merged struct {
	Scanner   json.RawMessage `json:"scanner,omitempty"`
	Inventory json.RawMessage `json:"cbom,omitempty"`
	Score     *int            `json:"score,omitempty"`
}

// Merged renders the persisted artifacts of one job as a single JSON
// document. Artifacts the job never produced are omitted, not rendered
// as null. The persisted artifacts are embedded verbatim.
func Merged(job model.Job) ([]byte, error) {
	var m merged
	if job.RawFindings != nil {
		if !json.Valid([]byte(*job.RawFindings)) {
			return nil, fmt.Errorf("job %s: raw findings are not valid JSON", job.ID)
		}
		m.Scanner = json.RawMessage(*job.RawFindings)
	}
	if job.InventoryDocument != nil {
		if !json.Valid([]byte(*job.InventoryDocument)) {
			return nil, fmt.Errorf("job %s: inventory document is not valid JSON", job.ID)
		}
		m.Inventory = json.RawMessage(*job.InventoryDocument)
	}
	m.Score = job.Score

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding merged report: %w", err)
	}
	return out, nil
}
