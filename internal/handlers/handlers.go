// REST API handlers for pipeline runs and deployed services

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"botforge/internal/deploy"
	"botforge/internal/logging"
	"botforge/internal/ollama"
	"botforge/internal/pipeline"
	"botforge/internal/requirements"
	"botforge/internal/store"
)

// Handler contains all the dependencies for API handlers
type Handler struct {
	Service    *pipeline.Service
	Supervisor *deploy.Supervisor
	Archive    *store.Store
	Ollama     *ollama.Client

	log *zap.Logger
}

// NewHandler creates a new handler instance
func NewHandler(service *pipeline.Service, supervisor *deploy.Supervisor, archive *store.Store, client *ollama.Client) *Handler {
	return &Handler{
		Service:    service,
		Supervisor: supervisor,
		Archive:    archive,
		Ollama:     client,
		log:        logging.L().With(zap.String("component", "handlers")),
	}
}

// StandardResponse represents a standard API response
type StandardResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// CreateRunRequest is the body for POST /api/v1/runs. Either structured
// fields or free text must be present.
type CreateRunRequest struct {
	Fields   map[string][]string `json:"fields"`
	FreeText string              `json:"free_text"`
}

// CreateRun starts a new generation run and returns its ID without waiting
// for the pipeline to finish.
func (h *Handler) CreateRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	payload := requirements.Payload{Fields: req.Fields, FreeText: req.FreeText}
	if payload.IsEmpty() {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Requirements must include structured fields or free text",
			Code:    "EMPTY_REQUIREMENTS",
		})
		return
	}

	id := h.Service.Start(payload)
	c.JSON(http.StatusAccepted, StandardResponse{
		Success: true,
		Data: gin.H{
			"run_id":   id,
			"needs_ui": requirements.NeedsUI(payload),
		},
		Message: "Run started",
	})
}

// GetRun returns the current state of a run, live or archived.
func (h *Handler) GetRun(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.Service.Get(id)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, StandardResponse{
				Success: false,
				Error:   "Run not found",
				Code:    "RUN_NOT_FOUND",
			})
			return
		}
		h.log.Error("failed to load run", zap.String("run_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to load run",
			Code:    "INTERNAL_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: rec})
}

// ListRuns returns archived runs, most recently finished first.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	recs, err := h.Archive.List(limit)
	if err != nil {
		h.log.Error("failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to list runs",
			Code:    "INTERNAL_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: recs})
}

// CancelRun aborts a live run. Cancelling a finished run is a no-op.
func (h *Handler) CancelRun(c *gin.Context) {
	id := c.Param("id")
	h.Service.Cancel(id)
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Message: "Cancellation requested",
	})
}

// ServiceStatus reports the state of the supervised backend and frontend
// processes of the most recent deployment.
func (h *Handler) ServiceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data: gin.H{
			"backend":  h.Supervisor.Status(deploy.ServiceBackend),
			"frontend": h.Supervisor.Status(deploy.ServiceFrontend),
		},
	})
}

// StopServices tears down the currently deployed processes.
func (h *Handler) StopServices(c *gin.Context) {
	h.Supervisor.StopAll()
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Message: "Deployed services stopped",
	})
}

// Health reports service liveness and completion-backend reachability.
func (h *Handler) Health(c *gin.Context) {
	status := "healthy"
	completion := "reachable"

	if err := h.Ollama.Health(c.Request.Context()); err != nil {
		status = "degraded"
		completion = err.Error()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"completion": completion,
		"timestamp":  time.Now().UTC(),
	})
}
