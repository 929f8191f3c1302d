package pipeline

import (
	"testing"
)

func fireAll(t *testing.T, m *Machine, events ...Event) {
	t.Helper()
	for _, ev := range events {
		if err := m.Fire(ev, ""); err != nil {
			t.Fatalf("Fire(%s) from %s: %v", ev, m.Current(), err)
		}
	}
}

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine("run-1")
	if m.Current() != StateAwaitingRequirements {
		t.Fatalf("initial state = %s", m.Current())
	}

	fireAll(t, m,
		EventRequirementsReceived,
		EventDispatched,
		EventResultsSettled,
		EventBackendUsable,
		EventAssembled,
		EventDeployed,
	)

	if m.Current() != StateCompleted {
		t.Fatalf("final state = %s, want %s", m.Current(), StateCompleted)
	}
	if !m.IsTerminal() {
		t.Fatalf("completed machine must report terminal")
	}
	if got := len(m.History()); got != 6 {
		t.Fatalf("history length = %d, want 6", got)
	}
}

func TestMachineDeployFailureCompletes(t *testing.T) {
	m := NewMachine("run-2")
	fireAll(t, m,
		EventRequirementsReceived,
		EventDispatched,
		EventResultsSettled,
		EventBackendUsable,
		EventAssembled,
		EventDeployFailed,
	)
	if m.Current() != StateCompleted {
		t.Fatalf("deploy failure must still complete the run, state = %s", m.Current())
	}
}

func TestMachineBackendUnusableAborts(t *testing.T) {
	m := NewMachine("run-3")
	fireAll(t, m,
		EventRequirementsReceived,
		EventDispatched,
		EventResultsSettled,
		EventBackendUnusable,
	)
	if m.Current() != StateAborted {
		t.Fatalf("state = %s, want %s", m.Current(), StateAborted)
	}
}

func TestMachineRejectsInvalidTransition(t *testing.T) {
	m := NewMachine("run-4")
	if err := m.Fire(EventDeployed, ""); err == nil {
		t.Fatalf("expected invalid transition error from %s", StateAwaitingRequirements)
	}
	if m.Current() != StateAwaitingRequirements {
		t.Fatalf("failed fire must not change state, state = %s", m.Current())
	}
}

func TestMachineCancellableFromEveryNonTerminalState(t *testing.T) {
	paths := map[State][]Event{
		StateAwaitingRequirements: {},
		StateDispatching:          {EventRequirementsReceived},
		StateAwaitingResults:      {EventRequirementsReceived, EventDispatched},
		StateBranching:            {EventRequirementsReceived, EventDispatched, EventResultsSettled},
		StateAssembling:           {EventRequirementsReceived, EventDispatched, EventResultsSettled, EventBackendUsable},
		StateDeploying:            {EventRequirementsReceived, EventDispatched, EventResultsSettled, EventBackendUsable, EventAssembled},
	}

	for state, path := range paths {
		m := NewMachine("run-cancel")
		fireAll(t, m, path...)
		if m.Current() != state {
			t.Fatalf("setup reached %s, want %s", m.Current(), state)
		}
		if err := m.Fire(EventCancelled, "user request"); err != nil {
			t.Fatalf("cancel from %s: %v", state, err)
		}
		if m.Current() != StateAborted {
			t.Fatalf("cancel from %s landed in %s", state, m.Current())
		}
	}
}

func TestMachineRejectsEventsAfterTerminal(t *testing.T) {
	m := NewMachine("run-5")
	fireAll(t, m, EventCancelled)
	if err := m.Fire(EventRequirementsReceived, ""); err == nil {
		t.Fatalf("terminal machine must reject further events")
	}
}

func TestMachineSubscriberReceivesTransitions(t *testing.T) {
	m := NewMachine("run-6")
	ch := m.Subscribe(4)
	defer m.Unsubscribe(ch)

	fireAll(t, m, EventRequirementsReceived, EventDispatched)

	first := <-ch
	if first.Event != EventRequirementsReceived || first.ToState != StateDispatching {
		t.Fatalf("unexpected first transition: %+v", first)
	}
	second := <-ch
	if second.Event != EventDispatched {
		t.Fatalf("unexpected second transition: %+v", second)
	}
	if first.RunID != "run-6" {
		t.Fatalf("transition missing run id")
	}
}

func TestMachineSlowSubscriberDoesNotBlockFire(t *testing.T) {
	m := NewMachine("run-7")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	// Second fire overflows the buffer; it must drop, not block.
	fireAll(t, m, EventRequirementsReceived, EventDispatched)

	if m.Current() != StateAwaitingResults {
		t.Fatalf("fire blocked by slow subscriber, state = %s", m.Current())
	}
	if got := len(m.History()); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
}
