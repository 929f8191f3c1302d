// Package generation wraps the completion client with a bounded retry policy
// and the output-acceptance heuristic. Two workers exist per pipeline, one
// for the backend artifact and one for the UI artifact, sharing the same
// escalation schedule.
package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"botforge/internal/logging"
	"botforge/internal/metrics"
	"botforge/internal/ollama"
)

// CompletionClient is the slice of the ollama client the worker needs.
type CompletionClient interface {
	Generate(ctx context.Context, req *ollama.CompletionRequest) (*ollama.CompletionResponse, error)
}

// attempt holds the sampling parameters for one try.
type attempt struct {
	temperature float32
	maxTokens   int
}

// attemptSchedule escalates: conservative, then creative, then maximal budget
// at the lowest temperature. The schedule itself is the retry policy; there
// is no backoff between attempts.
var attemptSchedule = []attempt{
	{temperature: 0.1, maxTokens: 2000},
	{temperature: 0.2, maxTokens: 2500},
	{temperature: 0.05, maxTokens: 3000},
}

// attemptTimeout bounds a single completion call.
const attemptTimeout = 90 * time.Second

// Worker generates one artifact role with bounded retries.
type Worker struct {
	client CompletionClient
	role   Role
	log    *zap.Logger
}

// NewWorker creates a worker for the given role.
func NewWorker(client CompletionClient, role Role) *Worker {
	return &Worker{
		client: client,
		role:   role,
		log:    logging.L().With(zap.String("worker", string(role))),
	}
}

// Role returns the artifact role this worker produces.
func (w *Worker) Role() Role { return w.role }

// Generate runs the attempt sequence for one request. It never returns a Go
// error: transport failures and rejected content become part of the Result.
func (w *Worker) Generate(ctx context.Context, req Request) Result {
	prompt := BuildPrompt(w.role, req.Spec)

	var lastText string
	for i, a := range attemptSchedule {
		if err := ctx.Err(); err != nil {
			return Result{
				CorrelationID: req.CorrelationID,
				Role:          w.role,
				Kind:          ResultFailed,
				Reason:        fmt.Sprintf("generation cancelled: %v", err),
				Attempts:      i,
			}
		}

		w.log.Info("generation attempt",
			zap.Int("attempt", i+1),
			zap.Int("of", len(attemptSchedule)),
			zap.Float32("temperature", a.temperature),
			zap.String("correlation_id", req.CorrelationID))
		metrics.Get().GenerationAttemptsTotal.WithLabelValues(string(w.role)).Inc()

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		resp, err := w.client.Generate(attemptCtx, &ollama.CompletionRequest{
			Prompt:      prompt,
			Temperature: a.temperature,
			MaxTokens:   a.maxTokens,
		})
		cancel()

		if err != nil {
			w.log.Warn("completion transport error", zap.Int("attempt", i+1), zap.Error(err))
			if i == len(attemptSchedule)-1 {
				metrics.Get().GenerationResultsTotal.WithLabelValues(string(w.role), string(ResultFailed)).Inc()
				return Result{
					CorrelationID: req.CorrelationID,
					Role:          w.role,
					Kind:          ResultFailed,
					Reason:        err.Error(),
					Attempts:      i + 1,
				}
			}
			// Transport errors do not count against acceptance; the next
			// attempt fires immediately with different parameters.
			continue
		}
		metrics.Get().CompletionDuration.WithLabelValues(string(w.role)).Observe(resp.Duration.Seconds())

		extracted := ExtractCode(resp.Text)
		lastText = extracted

		if Accept(w.role, extracted) {
			w.log.Info("generation accepted",
				zap.Int("attempt", i+1),
				zap.Int("chars", len(extracted)))
			metrics.Get().GenerationResultsTotal.WithLabelValues(string(w.role), string(ResultSuccess)).Inc()
			return Result{
				CorrelationID: req.CorrelationID,
				Role:          w.role,
				Kind:          ResultSuccess,
				Text:          extracted,
				Attempts:      i + 1,
			}
		}
		w.log.Warn("generated artifact rejected by acceptance heuristic", zap.Int("attempt", i+1))
	}

	// Every attempt failed acceptance without a final transport error: return
	// the last attempt's text as best effort. Content is never discarded.
	metrics.Get().GenerationResultsTotal.WithLabelValues(string(w.role), string(ResultIncomplete)).Inc()
	return Result{
		CorrelationID: req.CorrelationID,
		Role:          w.role,
		Kind:          ResultIncomplete,
		Text:          lastText,
		Reason:        "all attempts failed the acceptance heuristic",
		Attempts:      len(attemptSchedule),
	}
}
