package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a scan job. Transitions only move
// forward: QUEUED -> RUNNING -> COMPLETED|FAILED.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the forward-only state machine allows
// moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Tool selects which artifacts a job persists. The scanner is the only
// source of findings, so it runs regardless; the selector controls what
// is kept on the job row.
type Tool string

const (
	ToolBoth      Tool = "both"      // raw findings and inventory document
	ToolScanner   Tool = "scanner"   // raw findings only
	ToolInventory Tool = "inventory" // inventory document only
)

// KeepsFindings reports whether the raw scanner output is persisted.
func (t Tool) KeepsFindings() bool {
	return t == ToolBoth || t == ToolScanner
}

// KeepsInventory reports whether the inventory document is persisted.
func (t Tool) KeepsInventory() bool {
	return t == ToolBoth || t == ToolInventory
}

// ParseTool maps a submitted selector to a Tool. Empty input defaults
// to ToolBoth.
func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case ToolBoth, ToolScanner, ToolInventory:
		return Tool(s), nil
	case "":
		return ToolBoth, nil
	default:
		return "", fmt.Errorf("unknown tool selector: %q", s)
	}
}

// Job is the persisted unit of work. Optional fields are pointers so
// that "never computed" survives a round trip through the store as NULL.
type Job struct {
	ID                uuid.UUID `json:"id"`
	RepoURL           string    `json:"repoUrl"`
	Ref               string    `json:"ref,omitempty"` // branch, tag or commit hash; empty means default branch
	Tool              Tool      `json:"tool"`
	Status            Status    `json:"status"`
	DetectedLanguage  *string   `json:"detectedLanguage,omitempty"`
	RawFindings       *string   `json:"rawFindings,omitempty"`
	InventoryDocument *string   `json:"inventoryDocument,omitempty"`
	Score             *int      `json:"score,omitempty"`
	ErrorMessage      *string   `json:"errorMessage,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Outcome carries the fields a pipeline run produced for one job. A nil
// field means the step never completed (or its output failed validation)
// and the column stays NULL.
type Outcome struct {
	DetectedLanguage  *string
	RawFindings       *string
	InventoryDocument *string
	Score             *int
}
