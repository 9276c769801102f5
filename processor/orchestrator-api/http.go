package orchestratorapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/agentflow/engine"
	"github.com/c360studio/agentflow/storage"
)

// maxRequestBodySize limits intake and approval bodies to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// RunRequest is the body of POST /run.
type RunRequest struct {
	UserRequest string `json:"user_request"`
}

// RunResponse acknowledges workflow creation. The plan is already
// generated when this is returned; it waits at the approval gate.
type RunResponse struct {
	ThreadID  string    `json:"thread_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ApproveRequest is the body of POST /approve/{thread_id}. Feedback is
// required when the plan is rejected so the planner has something to
// revise against.
type ApproveRequest struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// ApproveResponse acknowledges an approval-gate decision.
type ApproveResponse struct {
	ThreadID  string    `json:"thread_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterHTTPHandlers registers the orchestrator endpoints.
// The prefix should be "" or "/api" style (without trailing slash).
func (c *Component) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	// Ensure prefix doesn't have trailing slash for consistent routing
	prefix = strings.TrimSuffix(prefix, "/")

	// POST /run - create a workflow and generate its plan
	mux.HandleFunc("POST "+prefix+"/run", c.handleRun)

	// GET /status/{thread_id} - current view of a workflow
	mux.HandleFunc("GET "+prefix+"/status/{thread_id}", c.handleStatus)

	// POST /approve/{thread_id} - approval gate decision
	mux.HandleFunc("POST "+prefix+"/approve/{thread_id}", c.handleApprove)

	// GET /healthz - component liveness
	mux.HandleFunc("GET "+prefix+"/healthz", c.handleHealthz)

	// GET /metrics - Prometheus metrics from this component's registry
	mux.Handle("GET "+prefix+"/metrics", promhttp.HandlerFor(c.metrics.registry, promhttp.HandlerOpts{}))
}

// handleRun handles POST /run.
func (c *Component) handleRun(w http.ResponseWriter, r *http.Request) {
	c.requestsServed.Add(1)
	c.metrics.requestsTotal.WithLabelValues("run").Inc()
	c.updateLastActivity()

	eng := c.getEngine()
	if eng == nil {
		c.writeError(w, http.StatusServiceUnavailable, "orchestrator not running")
		return
	}

	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	threadID, err := eng.Start(r.Context(), req.UserRequest)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrEmptyRequest):
			c.writeError(w, http.StatusBadRequest, "user_request is required")
		case errors.Is(err, engine.ErrRequestTooLong):
			c.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			c.logger.Error("Failed to start workflow", "error", err)
			c.writeError(w, http.StatusInternalServerError, "failed to start workflow")
		}
		return
	}

	c.workflowsStarted.Add(1)
	c.metrics.workflowsStarted.Inc()

	c.logger.Info("Workflow created via HTTP", "thread_id", threadID)

	c.writeJSON(w, http.StatusOK, RunResponse{
		ThreadID:  threadID,
		Status:    "initiated",
		Message:   "plan generated and awaiting approval",
		CreatedAt: time.Now().UTC(),
	})
}

// handleStatus handles GET /status/{thread_id}.
func (c *Component) handleStatus(w http.ResponseWriter, r *http.Request) {
	c.requestsServed.Add(1)
	c.metrics.requestsTotal.WithLabelValues("status").Inc()
	c.updateLastActivity()

	eng := c.getEngine()
	if eng == nil {
		c.writeError(w, http.StatusServiceUnavailable, "orchestrator not running")
		return
	}

	threadID := r.PathValue("thread_id")
	if !validThreadID(threadID) {
		c.writeError(w, http.StatusBadRequest, "invalid thread id format")
		return
	}

	view, err := eng.Status(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		c.logger.Error("Failed to load workflow status", "thread_id", threadID, "error", err)
		c.writeError(w, http.StatusInternalServerError, "failed to load workflow")
		return
	}

	c.writeJSON(w, http.StatusOK, view)
}

// handleApprove handles POST /approve/{thread_id}.
func (c *Component) handleApprove(w http.ResponseWriter, r *http.Request) {
	c.requestsServed.Add(1)
	c.metrics.requestsTotal.WithLabelValues("approve").Inc()
	c.updateLastActivity()

	eng := c.getEngine()
	if eng == nil {
		c.writeError(w, http.StatusServiceUnavailable, "orchestrator not running")
		return
	}

	threadID := r.PathValue("thread_id")
	if !validThreadID(threadID) {
		c.writeError(w, http.StatusBadRequest, "invalid thread id format")
		return
	}

	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	directive := engine.DirectiveRejected
	decision := "rejected"
	message := "plan rejected; a revised plan is awaiting approval"
	if req.Approved {
		directive = engine.DirectiveApproved
		decision = "approved"
		message = "plan approved; execution started"
	}

	if err := eng.Resume(r.Context(), threadID, directive, req.Feedback); err != nil {
		switch {
		case errors.Is(err, engine.ErrFeedbackRequired):
			c.writeError(w, http.StatusBadRequest, "feedback is required when rejecting a plan")
		case errors.Is(err, storage.ErrNotFound):
			c.writeError(w, http.StatusNotFound, "workflow not found")
		case errors.Is(err, engine.ErrConflict):
			c.writeError(w, http.StatusConflict, err.Error())
		default:
			c.logger.Error("Failed to apply approval decision",
				"thread_id", threadID, "decision", decision, "error", err)
			c.writeError(w, http.StatusInternalServerError, "failed to apply decision")
		}
		return
	}

	c.metrics.approvalsTotal.WithLabelValues(decision).Inc()

	c.logger.Info("Approval decision applied via HTTP",
		"thread_id", threadID,
		"decision", decision,
	)

	// Report the derived status after the directive took effect. For a
	// rejection the re-plan already ran, so this reads pending_approval;
	// for an approval it reflects however far the background run got.
	status := decision
	if view, err := eng.Status(r.Context(), threadID); err == nil {
		status = string(view.Status)
	}

	c.writeJSON(w, http.StatusOK, ApproveResponse{
		ThreadID:  threadID,
		Status:    status,
		Message:   message,
		UpdatedAt: time.Now().UTC(),
	})
}

// handleHealthz handles GET /healthz.
func (c *Component) handleHealthz(w http.ResponseWriter, r *http.Request) {
	health := c.Health()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.writeJSON(w, status, health)
}

// validThreadID reports whether id looks like something the engine
// could have issued: a canonical UUID, or a "test-" id from fixtures.
func validThreadID(id string) bool {
	if strings.HasPrefix(id, "test-") {
		return len(id) > len("test-")
	}
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// writeJSON writes a JSON response.
func (c *Component) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.log().Warn("Failed to write JSON response", "error", err)
	}
}

// writeError writes an error response.
func (c *Component) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		// Status and headers are already out; nothing to recover.
		_ = err
	}
}

// log returns the logger, defaulting to slog.Default if nil.
func (c *Component) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
