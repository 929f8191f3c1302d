package pipeline

import (
	"time"

	"botforge/internal/deploy"
	"botforge/internal/generation"
	"botforge/internal/requirements"
	"botforge/pkg/models"
)

// Run holds everything produced during one end-to-end pipeline execution.
// A fresh Run value is constructed per request and owned exclusively by the
// coordinator until it reaches a terminal state; nothing is carried over
// between runs.
type Run struct {
	ID           string
	Requirements requirements.Payload
	NeedsUI      bool
	State        State
	Results      map[generation.Role]generation.Result
	ProjectDir   string
	Deployment   *deploy.Deployment
	Warning      string
	Reason       string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// newRun constructs the immutable-per-request run value.
func newRun(id string, payload requirements.Payload) *Run {
	return &Run{
		ID:           id,
		Requirements: payload,
		State:        StateAwaitingRequirements,
		Results:      make(map[generation.Role]generation.Result),
		StartedAt:    time.Now(),
	}
}

// snapshot returns a copy safe to hand to callers while the run is live.
func (r *Run) snapshot() Run {
	cp := *r
	cp.Results = make(map[generation.Role]generation.Result, len(r.Results))
	for k, v := range r.Results {
		cp.Results[k] = v
	}
	return cp
}

// Record converts a terminal run into its archived form.
func (r *Run) Record() *models.RunRecord {
	rec := &models.RunRecord{
		ID:         r.ID,
		Status:     string(r.State),
		NeedsUI:    r.NeedsUI,
		ProjectDir: r.ProjectDir,
		Warning:    r.Warning,
		Reason:     r.Reason,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if res, ok := r.Results[generation.RoleBackend]; ok {
		rec.BackendKind = string(res.Kind)
	}
	if res, ok := r.Results[generation.RoleUI]; ok {
		rec.UIKind = string(res.Kind)
	}
	if r.Deployment != nil {
		rec.BackendURL = r.Deployment.BackendURL
		rec.FrontendURL = r.Deployment.FrontendURL
	}
	return rec
}
