// Package pipeline drives the end-to-end analyze → generate → assemble →
// deploy workflow for one requirements input. The coordinator owns each run
// exclusively for its duration; finished runs are archived.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"botforge/internal/logging"

	"go.uber.org/zap"
)

// State represents the discrete states of a pipeline run.
type State string

const (
	StateAwaitingRequirements State = "awaiting_requirements"
	StateDispatching          State = "dispatching"
	StateAwaitingResults      State = "awaiting_results"
	StateBranching            State = "branching"
	StateAssembling           State = "assembling"
	StateDeploying            State = "deploying"
	StateCompleted            State = "completed"
	StateAborted              State = "aborted"
)

// IsTerminal reports whether the state is Completed or Aborted.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Event represents the occurrences that advance a run.
type Event string

const (
	EventRequirementsReceived Event = "requirements_received"
	EventDispatched           Event = "dispatched"
	EventResultsSettled       Event = "results_settled"
	EventBackendUsable        Event = "backend_usable"
	EventBackendUnusable      Event = "backend_unusable"
	EventAssembled            Event = "assembled"
	EventPersistFailed        Event = "persist_failed"
	EventDeployed             Event = "deployed"
	EventDeployFailed         Event = "deploy_failed"
	EventCancelled            Event = "cancelled"
)

// transition defines a valid (from, event) → to mapping.
type transition struct {
	From  State
	Event Event
	To    State
}

// validTransitions is the canonical transition table.
var validTransitions = []transition{
	{StateAwaitingRequirements, EventRequirementsReceived, StateDispatching},
	{StateDispatching, EventDispatched, StateAwaitingResults},
	{StateAwaitingResults, EventResultsSettled, StateBranching},
	{StateBranching, EventBackendUsable, StateAssembling},
	{StateBranching, EventBackendUnusable, StateAborted},
	{StateAssembling, EventAssembled, StateDeploying},
	{StateAssembling, EventPersistFailed, StateAborted},
	{StateDeploying, EventDeployed, StateCompleted},

	// Deployment failure never discards the assembled project: the run
	// completes with a warning instead of aborting.
	{StateDeploying, EventDeployFailed, StateCompleted},

	// Cancellation is allowed from every non-terminal state and goes
	// straight to Aborted without assembly or deployment.
	{StateAwaitingRequirements, EventCancelled, StateAborted},
	{StateDispatching, EventCancelled, StateAborted},
	{StateAwaitingResults, EventCancelled, StateAborted},
	{StateBranching, EventCancelled, StateAborted},
	{StateAssembling, EventCancelled, StateAborted},
	{StateDeploying, EventCancelled, StateAborted},
}

// Transition is emitted on every state change. Subscribe to receive these
// for WebSocket bridging.
type Transition struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	FromState  State     `json:"from_state"`
	ToState    State     `json:"to_state"`
	Event      Event     `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
	Detail     string    `json:"detail,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Machine is the per-run state machine. One machine exists per PipelineRun
// and dies with it.
type Machine struct {
	mu sync.RWMutex

	runID       string
	state       State
	lastTransAt time.Time
	history     []Transition
	subscribers []chan Transition
}

// NewMachine creates a machine in AwaitingRequirements.
func NewMachine(runID string) *Machine {
	return &Machine{
		runID:       runID,
		state:       StateAwaitingRequirements,
		lastTransAt: time.Now(),
		history:     make([]Transition, 0, 16),
	}
}

// Current returns the current state (thread-safe).
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsTerminal reports whether the machine reached Completed or Aborted.
func (m *Machine) IsTerminal() bool {
	return m.Current().IsTerminal()
}

// Fire attempts to advance the machine via the given event, attaching detail
// to the emitted record. Invalid transitions are programming errors and are
// returned as such.
func (m *Machine) Fire(event Event, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	var to State
	found := false
	for _, t := range validTransitions {
		if t.From == from && t.Event == event {
			to = t.To
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid transition: state=%s event=%s", from, event)
	}

	now := time.Now()
	record := Transition{
		ID:         uuid.New().String(),
		RunID:      m.runID,
		FromState:  from,
		ToState:    to,
		Event:      event,
		Timestamp:  now,
		Detail:     detail,
		DurationMs: now.Sub(m.lastTransAt).Milliseconds(),
	}

	m.state = to
	m.lastTransAt = now
	m.history = append(m.history, record)

	for _, ch := range m.subscribers {
		select {
		case ch <- record:
		default:
			// Drop if the subscriber is slow; it can replay from history.
		}
	}

	logging.L().Info("pipeline transition",
		zap.String("run_id", m.runID),
		zap.String("from", string(from)),
		zap.String("event", string(event)),
		zap.String("to", string(to)))

	return nil
}

// History returns a copy of all transitions so far.
func (m *Machine) History() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Subscribe returns a channel receiving every subsequent transition.
func (m *Machine) Subscribe(bufferSize int) chan Transition {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	ch := make(chan Transition, bufferSize)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (m *Machine) Unsubscribe(ch chan Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}
