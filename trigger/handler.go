// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/trigger/lib/clock"
	"github.com/bureau-foundation/trigger/lib/runner"
)

// Handler serves the admission controller's HTTP surface. It owns the
// shutdown flag; the registry owns everything else that is mutable.
type Handler struct {
	registry         *Registry
	runner           runner.Runner
	secret           []byte
	script           string
	workingDirectory string
	clock            clock.Clock
	logger           *slog.Logger

	// shuttingDown is set exactly once when shutdown begins and is
	// never reset. Checked before any other input is trusted.
	shuttingDown atomic.Bool
}

// HandlerConfig configures a Handler. All fields are required except
// WorkingDirectory.
type HandlerConfig struct {
	Registry         *Registry
	Runner           runner.Runner
	Secret           []byte
	Script           string
	WorkingDirectory string
	Clock            clock.Clock
	Logger           *slog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(config HandlerConfig) *Handler {
	if config.Registry == nil {
		panic("trigger.Handler: Registry is required")
	}
	if config.Runner == nil {
		panic("trigger.Handler: Runner is required")
	}
	if config.Script == "" {
		panic("trigger.Handler: Script is required")
	}
	if config.Clock == nil {
		panic("trigger.Handler: Clock is required")
	}
	if config.Logger == nil {
		panic("trigger.Handler: Logger is required")
	}
	return &Handler{
		registry:         config.Registry,
		runner:           config.Runner,
		secret:           config.Secret,
		script:           config.Script,
		workingDirectory: config.WorkingDirectory,
		clock:            config.Clock,
		logger:           config.Logger,
	}
}

// SetShuttingDown flips the shutdown flag. From this point every
// trigger request is rejected with 503; /health keeps answering.
func (h *Handler) SetShuttingDown() { h.shuttingDown.Store(true) }

// ServeHTTP dispatches GET /health and POST /trigger. Everything else
// — unknown paths and wrong methods alike — is 404, so the surface
// reveals nothing about which methods exist.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		h.handleHealth(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/trigger":
		h.handleTrigger(w, r)
	default:
		http.NotFound(w, r)
	}
}

// healthResponse is the GET /health body.
type healthResponse struct {
	MaxConcurrent int         `json:"maxConcurrent"`
	TimeoutSec    int64       `json:"timeoutSec"`
	ShuttingDown  bool        `json:"shuttingDown"`
	Runs          []RunStatus `json:"runs"`
}

// handleHealth reports configuration and the current registry
// contents. Unauthenticated: it is informational only.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		MaxConcurrent: h.registry.Max(),
		TimeoutSec:    int64(h.registry.Timeout().Seconds()),
		ShuttingDown:  h.shuttingDown.Load(),
		Runs:          h.registry.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("writing health response", "error", err)
	}
}

// handleTrigger runs the ordered admission pipeline and, on success,
// streams the run until its process exits. The response stays open
// for the run's whole lifetime.
func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	// 1. Shutdown: no new work during drain, regardless of input.
	if h.shuttingDown.Load() {
		h.reject(w, &Rejection{
			Status:  http.StatusServiceUnavailable,
			Code:    RejectShuttingDown,
			Message: "shutting down",
		})
		return
	}

	// 2. Auth, before any other input is trusted.
	if !VerifyBearer(r.Header.Get("Authorization"), h.secret) {
		h.reject(w, &Rejection{
			Status:  http.StatusUnauthorized,
			Code:    RejectUnauthorized,
			Message: "unauthorized",
		})
		return
	}

	reason := r.FormValue("reason")
	if reason == "" {
		reason = DefaultReason
	}
	issue := r.FormValue("issue")

	// 3–6. Capacity, reason, issue, duplicate — atomically with the
	// sweep and the insert.
	run, current, rejection, err := h.registry.Admit(reason, issue, func() (runner.Handle, error) {
		env := map[string]string{"TRIGGER_REASON": reason}
		if issue != "" {
			env["TRIGGER_ISSUE"] = issue
		}
		return h.runner.Start(runner.StartOptions{
			Script:           h.script,
			WorkingDirectory: h.workingDirectory,
			Env:              env,
		})
	})
	if err != nil {
		h.logger.Error("starting run failed", "reason", reason, "issue", issue, "error", err)
		http.Error(w, "failed to start run", http.StatusInternalServerError)
		return
	}
	if rejection != nil {
		h.reject(w, rejection)
		return
	}

	h.logger.Info("run admitted",
		"run", run.ID, "pid", run.Handle.PID(), "reason", run.Reason,
		"issue", run.Issue, "concurrent", current, "max", h.registry.Max())

	h.stream(w, run, current)
}

// reject writes a terminal rejection. Rejections have no side effects
// and are logged at Info — they are expected outcomes, not faults.
func (h *Handler) reject(w http.ResponseWriter, rejection *Rejection) {
	h.logger.Info("trigger rejected", "code", rejection.Code, "status", rejection.Status)
	http.Error(w, rejection.Message, rejection.Status)
}

// stream writes the framing header, forwards the run's output live,
// and finishes with the completion footer once the process exits.
//
// A broken client connection never aborts the run: after the first
// write error the response is abandoned but the output keeps being
// drained so the process can't stall on a full pipe, and capacity is
// reclaimed on the normal path when it exits.
func (h *Handler) stream(w http.ResponseWriter, run *Run, current int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	issuePart := ""
	if run.Issue != "" {
		issuePart = " issue=" + run.Issue
	}

	var writeErr error
	if _, err := fmt.Fprintf(w, "[trigger] run=%d reason=%s%s concurrent=%d/%d\n",
		run.ID, run.Reason, issuePart, current, h.registry.Max()); err != nil {
		writeErr = err
	}
	flush()

	// Forward output chunk by chunk: no full-output buffering, so
	// memory stays bounded and the caller sees progress live.
	buffer := make([]byte, 32*1024)
	for {
		n, readErr := run.Handle.Output().Read(buffer)
		if n > 0 && writeErr == nil {
			if _, err := w.Write(buffer[:n]); err != nil {
				writeErr = err
				h.logger.Warn("response write failed, run continues",
					"run", run.ID, "error", err)
			} else {
				flush()
			}
		}
		if readErr != nil {
			break
		}
	}

	exitCode, waitErr := run.Handle.Wait()
	if waitErr != nil {
		h.logger.Error("waiting for run", "run", run.ID, "error", waitErr)
	}
	duration := h.clock.Now().Sub(run.StartedAt).Truncate(time.Millisecond)
	remaining := h.registry.Remove(run.ID)

	if writeErr == nil {
		fmt.Fprintf(w, "[trigger] run=%d exit=%d duration=%s concurrent=%d/%d\n",
			run.ID, exitCode, duration, remaining, h.registry.Max())
		flush()
	}

	h.logger.Info("run finished",
		"run", run.ID, "exit", exitCode, "duration", duration,
		"remaining", remaining, "max", h.registry.Max())
}
