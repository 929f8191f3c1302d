// Package models defines the persisted records shared between the pipeline
// and the HTTP surface.
package models

import "time"

// RunRecord is the archived form of a finished pipeline run. Live runs exist
// only as in-memory values owned by the coordinator; a record is written once
// the run reaches a terminal state.
type RunRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Status      string    `gorm:"index" json:"status"`
	NeedsUI     bool      `json:"needs_ui"`
	BackendKind string    `json:"backend_kind,omitempty"`
	UIKind      string    `json:"ui_kind,omitempty"`
	ProjectDir  string    `json:"project_dir,omitempty"`
	BackendURL  string    `json:"backend_url,omitempty"`
	FrontendURL string    `json:"frontend_url,omitempty"`
	Warning     string    `json:"warning,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
