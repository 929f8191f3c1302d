// Package ollama implements the client for the opaque completion service.
// The generation worker is the only caller; the client itself is stateless
// and never retries. Escalation policy lives in the worker.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CompletionRequest is one prompt plus sampling options sent to the service.
type CompletionRequest struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// CompletionResponse carries the raw generated text.
type CompletionResponse struct {
	Text     string
	Duration time.Duration
}

// ollamaRequest is the native /api/generate payload.
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Usage tracks aggregate client statistics.
type Usage struct {
	RequestCount int64
	ErrorCount   int64
	AvgLatency   float64
}

// Client talks to a single Ollama server with one fixed model.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	usage      Usage
	usageMu    sync.RWMutex
}

// NewClient creates a completion client. Local inference can be slow, so the
// per-request timeout is generous; callers bound waits with their own context.
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 900 * time.Second,
		},
		// One inference at a time with small bursts keeps a local server from
		// queueing unboundedly when backend and UI generation run concurrently.
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// Generate sends one completion request and returns the raw text.
// Any non-2xx status or connectivity failure is a transport error.
func (c *Client) Generate(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()

	body, err := json.Marshal(&ollamaRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordError()
		return nil, fmt.Errorf("failed to connect to Ollama server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordError()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.recordError()
		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil, fmt.Errorf("model %q not installed on %s (run: ollama pull %s)", c.model, c.baseURL, c.model)
		case 500, 502, 503, 504:
			return nil, fmt.Errorf("Ollama server error (status %d); is Ollama running?", resp.StatusCode)
		default:
			return nil, fmt.Errorf("Ollama request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.recordError()
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if parsed.Error != "" {
		c.recordError()
		return nil, fmt.Errorf("Ollama API error: %s", parsed.Error)
	}

	elapsed := time.Since(start)
	c.recordSuccess(elapsed)

	return &CompletionResponse{Text: parsed.Response, Duration: elapsed}, nil
}

// Health probes the model list endpoint.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("Ollama unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama health check returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to decode model list: %w", err)
	}
	return nil
}

// GetUsage returns a snapshot of client statistics.
func (c *Client) GetUsage() Usage {
	c.usageMu.RLock()
	defer c.usageMu.RUnlock()
	return c.usage
}

func (c *Client) recordSuccess(elapsed time.Duration) {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	n := float64(c.usage.RequestCount)
	c.usage.AvgLatency = (c.usage.AvgLatency*n + elapsed.Seconds()) / (n + 1)
	c.usage.RequestCount++
}

func (c *Client) recordError() {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	c.usage.RequestCount++
	c.usage.ErrorCount++
}
