package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"botforge/internal/generation"
	"botforge/internal/store"
)

func testService(t *testing.T, backend, ui *fakeGenerator, deployer Deployer) *Service {
	t.Helper()
	archive, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	c := NewCoordinator(backend, ui, deployer, nil, fastOptions(t))
	return NewService(c, archive)
}

func TestServiceRunLifecycle(t *testing.T) {
	backend := &fakeGenerator{role: generation.RoleBackend, result: goodBackend()}
	ui := &fakeGenerator{role: generation.RoleUI, result: goodUI()}
	svc := testService(t, backend, ui, workingDeployer())

	id := svc.Start(backendPayload())
	if id == "" {
		t.Fatalf("Start returned empty run id")
	}
	svc.Wait(id)

	rec, err := svc.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != string(StateCompleted) {
		t.Fatalf("status = %s reason = %q", rec.Status, rec.Reason)
	}
	if rec.BackendURL != "http://localhost:8000" {
		t.Fatalf("backend url = %s", rec.BackendURL)
	}

	// The terminal run was evicted from the live set; the archive still
	// serves it.
	rec2, err := svc.Get(id)
	if err != nil {
		t.Fatalf("Get after eviction: %v", err)
	}
	if rec2.ID != id || rec2.Status != string(StateCompleted) {
		t.Fatalf("archived record mismatch: %+v", rec2)
	}
}

func TestServiceGetUnknownRun(t *testing.T) {
	backend := &fakeGenerator{role: generation.RoleBackend, result: goodBackend()}
	ui := &fakeGenerator{role: generation.RoleUI, result: goodUI()}
	svc := testService(t, backend, ui, workingDeployer())

	if _, err := svc.Get("no-such-run"); err != ErrRunNotFound {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestServiceCancelAbortsRun(t *testing.T) {
	backend := &fakeGenerator{role: generation.RoleBackend, result: goodBackend(), delay: 10 * time.Second}
	ui := &fakeGenerator{role: generation.RoleUI, result: goodUI()}
	svc := testService(t, backend, ui, workingDeployer())

	id := svc.Start(backendPayload())
	time.Sleep(50 * time.Millisecond)
	svc.Cancel(id)
	svc.Wait(id)

	rec, err := svc.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != string(StateAborted) {
		t.Fatalf("status = %s, want aborted", rec.Status)
	}
}

func TestServiceCancelUnknownRunIsNoop(t *testing.T) {
	backend := &fakeGenerator{role: generation.RoleBackend, result: goodBackend()}
	ui := &fakeGenerator{role: generation.RoleUI, result: goodUI()}
	svc := testService(t, backend, ui, workingDeployer())
	svc.Cancel("no-such-run")
}

func TestServiceSubscribeStreamsTransitions(t *testing.T) {
	backend := &fakeGenerator{role: generation.RoleBackend, result: goodBackend(), delay: 200 * time.Millisecond}
	ui := &fakeGenerator{role: generation.RoleUI, result: goodUI()}
	svc := testService(t, backend, ui, workingDeployer())

	id := svc.Start(backendPayload())
	events, unsubscribe, err := svc.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	var seen []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case tr := <-events:
			seen = append(seen, tr.Event)
			if tr.ToState.IsTerminal() {
				if tr.ToState != StateCompleted {
					t.Fatalf("run ended in %s", tr.ToState)
				}
				if len(seen) < 2 {
					t.Fatalf("expected multiple transitions, saw %v", seen)
				}
				return
			}
		case <-deadline:
			t.Fatalf("no terminal transition observed, saw %v", seen)
		}
	}
}

func TestServiceConcurrentRuns(t *testing.T) {
	backend := &fakeGenerator{role: generation.RoleBackend, result: goodBackend()}
	ui := &fakeGenerator{role: generation.RoleUI, result: goodUI()}
	svc := testService(t, backend, ui, workingDeployer())

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = svc.Start(backendPayload())
	}
	for _, id := range ids {
		svc.Wait(id)
	}
	for _, id := range ids {
		rec, err := svc.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if rec.Status != string(StateCompleted) {
			t.Fatalf("run %s status = %s", id, rec.Status)
		}
	}
}
