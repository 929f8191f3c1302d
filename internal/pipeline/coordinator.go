package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"botforge/internal/assemble"
	"botforge/internal/deploy"
	"botforge/internal/generation"
	"botforge/internal/logging"
	"botforge/internal/metrics"
	"botforge/internal/requirements"
)

// Generator is the slice of a generation worker the coordinator needs.
type Generator interface {
	Role() generation.Role
	Generate(ctx context.Context, req generation.Request) generation.Result
}

// Deployer is the slice of the process supervisor the coordinator needs.
type Deployer interface {
	Deploy(ctx context.Context, req deploy.DeployRequest) (*deploy.Deployment, error)
}

// Options carries the coordinator's timing and filesystem policy.
type Options struct {
	WorkspaceRoot      string
	GenerationDeadline time.Duration
	PollInterval       time.Duration
}

func (o *Options) applyDefaults() {
	if o.GenerationDeadline <= 0 {
		o.GenerationDeadline = 120 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.WorkspaceRoot == "" {
		o.WorkspaceRoot = "."
	}
}

// Coordinator orchestrates one run at a time per Execute call: dispatch to
// generation workers, bounded joint wait, branch on usability, assembly,
// stability gate, deployment.
type Coordinator struct {
	backend  Generator
	ui       Generator
	deployer Deployer
	gate     *deploy.StabilityGate // nil disables the pre-deploy wait
	opts     Options
	log      *zap.Logger
}

// NewCoordinator wires the pipeline's collaborators together.
func NewCoordinator(backend, ui Generator, deployer Deployer, gate *deploy.StabilityGate, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		backend:  backend,
		ui:       ui,
		deployer: deployer,
		gate:     gate,
		opts:     opts,
		log:      logging.L().With(zap.String("component", "coordinator")),
	}
}

// Execute drives the tracker's run from AwaitingRequirements to a terminal
// state. It never returns an error: every failure mode lands in the run's
// terminal state and reason.
func (c *Coordinator) Execute(ctx context.Context, t *Tracker) {
	m := t.machine
	payload := t.Snapshot().Requirements
	start := time.Now()

	metrics.Get().RunsInFlight.Inc()
	defer metrics.Get().RunsInFlight.Dec()
	defer func() {
		outcome := string(t.Snapshot().State)
		metrics.Get().RunsTotal.WithLabelValues(outcome).Inc()
		metrics.Get().RunDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	// AwaitingRequirements → Dispatching: decide requested roles.
	needsUI := requirements.NeedsUI(payload)
	t.update(func(r *Run) {
		r.NeedsUI = needsUI
		r.State = StateDispatching
	})
	_ = m.Fire(EventRequirementsReceived, fmt.Sprintf("needs_ui=%v", needsUI))

	if c.cancelled(ctx, t) {
		return
	}

	// Dispatching → AwaitingResults: one request per role, concurrently.
	// UI's request is never blocked on backend's completion.
	resultCh := make(chan generation.Result, 2)
	expected := 1
	go c.dispatch(ctx, c.backend, payload, resultCh)
	if needsUI {
		expected = 2
		go c.dispatch(ctx, c.ui, payload, resultCh)
	}
	t.update(func(r *Run) { r.State = StateAwaitingResults })
	_ = m.Fire(EventDispatched, fmt.Sprintf("roles=%d", expected))

	// AwaitingResults: poll on a fixed interval under a joint deadline.
	if aborted := c.awaitResults(ctx, t, resultCh, expected); aborted {
		return
	}

	// Missing roles at deadline are treated as timed out.
	t.update(func(r *Run) {
		if _, ok := r.Results[generation.RoleBackend]; !ok {
			r.Results[generation.RoleBackend] = generation.Result{
				Role:   generation.RoleBackend,
				Kind:   generation.ResultFailed,
				Reason: ErrStageTimeout.Error(),
			}
		}
		if r.NeedsUI {
			if _, ok := r.Results[generation.RoleUI]; !ok {
				r.Results[generation.RoleUI] = generation.Result{
					Role:   generation.RoleUI,
					Kind:   generation.ResultFailed,
					Reason: ErrStageTimeout.Error(),
				}
			}
		}
		r.State = StateBranching
	})
	_ = m.Fire(EventResultsSettled, "")

	// Branching: the run proceeds only on a usable backend result. A dead
	// UI result degrades the run to backend-only rather than failing it.
	snap := t.Snapshot()
	backendRes := snap.Results[generation.RoleBackend]
	if !backendRes.Usable() {
		reason := fmt.Sprintf("%s: %s", ErrAssemblyNeverAttempted.Error(), backendRes.Reason)
		_ = m.Fire(EventBackendUnusable, reason)
		t.finish(StateAborted, reason, "")
		return
	}
	_ = m.Fire(EventBackendUsable, string(backendRes.Kind))
	t.update(func(r *Run) { r.State = StateAssembling })

	// Assembling.
	backendArt := assemble.BuildArtifact(generation.RoleBackend, backendRes.Text)
	var uiArt *assemble.Artifact
	if uiRes, ok := snap.Results[generation.RoleUI]; ok && uiRes.Usable() {
		a := assemble.BuildArtifact(generation.RoleUI, uiRes.Text)
		uiArt = &a
	}

	rootName := "generated_project_" + shortID(snap.ID)
	layout := assemble.Assemble(rootName, backendArt, uiArt, payload)
	projectDir, err := layout.WriteTo(c.opts.WorkspaceRoot)
	if err != nil {
		reason := fmt.Sprintf("failed to persist project layout: %v", err)
		_ = m.Fire(EventPersistFailed, reason)
		t.finish(StateAborted, reason, "")
		return
	}
	t.update(func(r *Run) {
		r.ProjectDir = projectDir
		r.State = StateDeploying
	})
	_ = m.Fire(EventAssembled, projectDir)

	if c.cancelled(ctx, t) {
		return
	}

	// Deploying: optional stability gate, then the supervisor. A failed
	// deployment never discards the assembled project: the run completes
	// with a warning and still reports the project location.
	if c.gate != nil {
		c.gate.WaitStable(ctx, projectDir)
	}

	dep, err := c.deployer.Deploy(ctx, deploy.DeployRequest{
		ProjectDir:  projectDir,
		HasFrontend: uiArt != nil,
	})
	if err != nil {
		if ctx.Err() != nil {
			c.abortCancelled(t)
			return
		}
		warning := fmt.Sprintf("deployment failed: %v", err)
		c.log.Warn("run completed with warning", zap.String("run_id", snap.ID), zap.String("warning", warning))
		_ = m.Fire(EventDeployFailed, warning)
		t.finish(StateCompleted, "", warning)
		return
	}

	t.update(func(r *Run) { r.Deployment = dep })
	_ = m.Fire(EventDeployed, dep.BackendURL)
	t.finish(StateCompleted, "", "")
}

// dispatch issues one generation request and forwards its result.
func (c *Coordinator) dispatch(ctx context.Context, g Generator, payload requirements.Payload, out chan<- generation.Result) {
	req := generation.Request{
		CorrelationID: uuid.New().String(),
		Role:          g.Role(),
		Spec:          payload,
	}
	out <- g.Generate(ctx, req)
}

// awaitResults polls for arrived results on a fixed interval until every
// expected role reported or the joint deadline elapsed. Returns true when
// the run was cancelled and already finished.
func (c *Coordinator) awaitResults(ctx context.Context, t *Tracker, resultCh <-chan generation.Result, expected int) bool {
	deadline := time.NewTimer(c.opts.GenerationDeadline)
	defer deadline.Stop()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	received := 0
poll:
	for received < expected {
		select {
		case <-ctx.Done():
			c.abortCancelled(t)
			return true
		case <-deadline.C:
			c.log.Warn("generation deadline elapsed",
				zap.Int("received", received), zap.Int("expected", expected))
			break poll
		case <-ticker.C:
			for {
				select {
				case res := <-resultCh:
					t.update(func(r *Run) { r.Results[res.Role] = res })
					received++
				default:
					continue poll
				}
			}
		}
	}
	return false
}

// cancelled checks for caller cancellation and, when set, transitions the
// run directly to Aborted.
func (c *Coordinator) cancelled(ctx context.Context, t *Tracker) bool {
	if ctx.Err() == nil {
		return false
	}
	c.abortCancelled(t)
	return true
}

func (c *Coordinator) abortCancelled(t *Tracker) {
	_ = t.machine.Fire(EventCancelled, ErrRunCancelled.Error())
	t.finish(StateAborted, ErrRunCancelled.Error(), "")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
