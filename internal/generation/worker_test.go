package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"botforge/internal/ollama"
	"botforge/internal/requirements"
)

// scriptedClient returns canned responses (or errors) per call, recording the
// sampling parameters of each attempt.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     []ollama.CompletionRequest
}

func (c *scriptedClient) Generate(ctx context.Context, req *ollama.CompletionRequest) (*ollama.CompletionResponse, error) {
	i := len(c.calls)
	c.calls = append(c.calls, *req)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	text := ""
	if i < len(c.responses) {
		text = c.responses[i]
	}
	return &ollama.CompletionResponse{Text: text}, nil
}

func acceptableBackend() string {
	return "```python\nimport fastapi\n" +
		strings.Repeat("# application scaffolding\n", 5) +
		"def read_root():\n    return {}\n```"
}

func TestWorkerAcceptsFirstAttempt(t *testing.T) {
	client := &scriptedClient{responses: []string{acceptableBackend()}}
	w := NewWorker(client, RoleBackend)

	res := w.Generate(context.Background(), Request{CorrelationID: "c1", Spec: requirements.Payload{FreeText: "an api"}})

	if res.Kind != ResultSuccess {
		t.Fatalf("kind = %s, want %s (reason: %s)", res.Kind, ResultSuccess, res.Reason)
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", res.Attempts)
	}
	if len(client.calls) != 1 {
		t.Fatalf("client called %d times, want 1", len(client.calls))
	}
	if !strings.Contains(res.Text, "def read_root") {
		t.Fatalf("result text lost the extracted code: %q", res.Text)
	}
}

func TestWorkerEscalatesSamplingParameters(t *testing.T) {
	rejected := "```python\ntoo short\n```"
	client := &scriptedClient{responses: []string{rejected, rejected, acceptableBackend()}}
	w := NewWorker(client, RoleBackend)

	res := w.Generate(context.Background(), Request{CorrelationID: "c2", Spec: requirements.Payload{FreeText: "an api"}})

	if res.Kind != ResultSuccess || res.Attempts != 3 {
		t.Fatalf("kind = %s attempts = %d, want success on attempt 3", res.Kind, res.Attempts)
	}

	wantTemps := []float32{0.1, 0.2, 0.05}
	wantTokens := []int{2000, 2500, 3000}
	for i, call := range client.calls {
		if call.Temperature != wantTemps[i] || call.MaxTokens != wantTokens[i] {
			t.Fatalf("attempt %d used temp=%v tokens=%d, want temp=%v tokens=%d",
				i+1, call.Temperature, call.MaxTokens, wantTemps[i], wantTokens[i])
		}
	}
}

func TestWorkerIncompleteKeepsLastText(t *testing.T) {
	rejected := "```python\nstill not code\n```"
	client := &scriptedClient{responses: []string{rejected, rejected, rejected}}
	w := NewWorker(client, RoleBackend)

	res := w.Generate(context.Background(), Request{CorrelationID: "c3", Spec: requirements.Payload{FreeText: "an api"}})

	if res.Kind != ResultIncomplete {
		t.Fatalf("kind = %s, want %s", res.Kind, ResultIncomplete)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if res.Text != "still not code" {
		t.Fatalf("incomplete result must keep the last attempt's text, got %q", res.Text)
	}
	if !res.Usable() {
		t.Fatalf("incomplete results carry content and are usable for assembly")
	}
}

func TestWorkerTransportErrorDoesNotConsumeAcceptance(t *testing.T) {
	client := &scriptedClient{
		errs:      []error{errors.New("connection refused"), nil},
		responses: []string{"", acceptableBackend()},
	}
	w := NewWorker(client, RoleBackend)

	res := w.Generate(context.Background(), Request{CorrelationID: "c4", Spec: requirements.Payload{FreeText: "an api"}})

	if res.Kind != ResultSuccess {
		t.Fatalf("kind = %s, want success after transport retry", res.Kind)
	}
	if res.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", res.Attempts)
	}
}

func TestWorkerAllTransportErrorsFail(t *testing.T) {
	boom := errors.New("connection refused")
	client := &scriptedClient{errs: []error{boom, boom, boom}}
	w := NewWorker(client, RoleBackend)

	res := w.Generate(context.Background(), Request{CorrelationID: "c5", Spec: requirements.Payload{FreeText: "an api"}})

	if res.Kind != ResultFailed {
		t.Fatalf("kind = %s, want %s", res.Kind, ResultFailed)
	}
	if res.Usable() {
		t.Fatalf("failed results carry no content and must not be usable")
	}
	if len(client.calls) != 3 {
		t.Fatalf("client called %d times, want 3", len(client.calls))
	}
}

func TestWorkerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{}
	w := NewWorker(client, RoleBackend)

	res := w.Generate(ctx, Request{CorrelationID: "c6", Spec: requirements.Payload{FreeText: "an api"}})
	if res.Kind != ResultFailed {
		t.Fatalf("kind = %s, want failed on pre-cancelled context", res.Kind)
	}
	if len(client.calls) != 0 {
		t.Fatalf("no completion call should fire after cancellation")
	}
}
