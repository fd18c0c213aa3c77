// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/trigger/lib/clock"
	"github.com/bureau-foundation/trigger/lib/runner"
)

// Run is one admitted, in-flight execution. Immutable after insertion;
// lifecycle state is represented by registry membership, not by
// mutable fields. Its id is assigned at admission, is unique for the
// server's lifetime, and is never reused.
type Run struct {
	ID        int64
	Handle    runner.Handle
	StartedAt time.Time
	Reason    string
	Issue     string
}

// Rejection is a terminal, side-effect-free admission outcome.
type Rejection struct {
	// Status is the HTTP status code for the rejection.
	Status int

	// Code is the machine-readable rejection class.
	Code string

	// Message is the human-readable response body line.
	Message string
}

// Rejection codes, in validation order.
const (
	RejectShuttingDown  = "shutting_down"
	RejectUnauthorized  = "unauthorized"
	RejectCapacity      = "capacity"
	RejectInvalidReason = "invalid_reason"
	RejectInvalidIssue  = "invalid_issue"
	RejectDuplicate     = "duplicate"
)

// Registry is the authoritative mapping of run id to run metadata for
// all currently tracked runs, and the sole source of truth for how
// many runs occupy capacity. Every entry corresponds to a process that
// was alive as of the most recent sweep.
//
// All mutation happens under one mutex: admission (sweep, capacity,
// reason, issue, duplicate, insert) is a single critical section, so
// two concurrent requests can never both pass the capacity or
// duplicate check.
type Registry struct {
	maxConcurrent int
	runTimeout    time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	mu     sync.Mutex
	runs   map[int64]*Run
	nextID int64
}

// NewRegistry creates an empty registry. maxConcurrent and runTimeout
// are immutable for the registry's lifetime.
func NewRegistry(maxConcurrent int, runTimeout time.Duration, clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		maxConcurrent: maxConcurrent,
		runTimeout:    runTimeout,
		clock:         clk,
		logger:        logger,
		runs:          make(map[int64]*Run),
	}
}

// Max returns the configured concurrency bound.
func (r *Registry) Max() int { return r.maxConcurrent }

// Timeout returns the configured run timeout.
func (r *Registry) Timeout() time.Duration { return r.runTimeout }

// Len returns the number of tracked runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// Admit performs the registry-side admission checks in their
// contractual order — capacity (against a freshly swept registry),
// reason, issue, duplicate — and on success calls start, inserts the
// new run, and returns it along with the resulting concurrency.
//
// The start callback runs inside the critical section: admission and
// insertion are atomic, matching the single-control-flow model. A
// non-nil error means start itself failed; a non-nil Rejection is a
// terminal validation outcome with no side effects.
func (r *Registry) Admit(reason, issue string, start func() (runner.Handle, error)) (*Run, int, *Rejection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped, killed := r.sweepLocked()
	logSweep(r.logger, reaped, killed)

	if len(r.runs) >= r.maxConcurrent {
		oldest := r.oldestLocked()
		age := r.clock.Now().Sub(oldest.StartedAt).Truncate(time.Second)
		return nil, 0, &Rejection{
			Status: http.StatusTooManyRequests,
			Code:   RejectCapacity,
			Message: fmt.Sprintf("capacity: %d/%d runs active; oldest is run %d (reason=%s, age=%s)",
				len(r.runs), r.maxConcurrent, oldest.ID, oldest.Reason, age),
		}, nil
	}

	if !ValidReason(reason) {
		return nil, 0, &Rejection{
			Status:  http.StatusBadRequest,
			Code:    RejectInvalidReason,
			Message: fmt.Sprintf("invalid reason %q", reason),
		}, nil
	}

	if !ValidIssue(issue) {
		return nil, 0, &Rejection{
			Status:  http.StatusBadRequest,
			Code:    RejectInvalidIssue,
			Message: fmt.Sprintf("invalid issue %q: must be decimal digits", issue),
		}, nil
	}

	if issue != "" {
		for _, run := range r.runs {
			if run.Issue == issue {
				return nil, 0, &Rejection{
					Status:  http.StatusConflict,
					Code:    RejectDuplicate,
					Message: fmt.Sprintf("issue %s already has run %d in flight", issue, run.ID),
				}, nil
			}
		}
	}

	handle, err := start()
	if err != nil {
		return nil, 0, nil, err
	}

	r.nextID++
	run := &Run{
		ID:        r.nextID,
		Handle:    handle,
		StartedAt: r.clock.Now(),
		Reason:    reason,
		Issue:     issue,
	}
	r.runs[run.ID] = run
	return run, len(r.runs), nil, nil
}

// Remove deletes a run from the registry and returns the remaining
// count. Idempotent: the reaper and the streaming path race to remove
// a finished run, and whichever loses is a no-op.
func (r *Registry) Remove(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
	return len(r.runs)
}

// Sweep reaps dead runs and kills runs that have outlived the run
// timeout. Returns the reaped and killed id sets for logging.
func (r *Registry) Sweep() (reaped, killed []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

// sweepLocked walks every entry. A dead process is reaped regardless
// of age — reap takes priority over kill. A live process is killed
// only when its age strictly exceeds the timeout; exactly-at-timeout
// survives. Termination is fire-and-forget: the sweep never waits for
// a process to die, and a failed kill still frees the entry (the next
// request's capacity check must not be held hostage by an unkillable
// process).
func (r *Registry) sweepLocked() (reaped, killed []int64) {
	now := r.clock.Now()
	for id, run := range r.runs {
		alive, err := run.Handle.Alive()
		if err != nil {
			// Unknown liveness is not death. Keep the entry and
			// let a later sweep decide.
			r.logger.Warn("liveness probe failed, keeping run",
				"run", id, "pid", run.Handle.PID(), "error", err)
			continue
		}
		if !alive {
			delete(r.runs, id)
			reaped = append(reaped, id)
			continue
		}
		if now.Sub(run.StartedAt) > r.runTimeout {
			if err := run.Handle.Terminate(); err != nil {
				r.logger.Error("terminating timed-out run failed",
					"run", id, "pid", run.Handle.PID(), "error", err)
			}
			delete(r.runs, id)
			killed = append(killed, id)
		}
	}
	sort.Slice(reaped, func(i, j int) bool { return reaped[i] < reaped[j] })
	sort.Slice(killed, func(i, j int) bool { return killed[i] < killed[j] })
	return reaped, killed
}

// oldestLocked returns the longest-running entry. Only called when the
// registry is non-empty (the capacity check implies at least one run).
func (r *Registry) oldestLocked() *Run {
	var oldest *Run
	for _, run := range r.runs {
		if oldest == nil || run.StartedAt.Before(oldest.StartedAt) ||
			(run.StartedAt.Equal(oldest.StartedAt) && run.ID < oldest.ID) {
			oldest = run
		}
	}
	return oldest
}

// RunStatus is one registry entry as reported by GET /health.
type RunStatus struct {
	ID     int64  `json:"id"`
	PID    int    `json:"pid"`
	Reason string `json:"reason"`
	Issue  string `json:"issue,omitempty"`
	AgeSec int64  `json:"ageSec"`
}

// Snapshot returns the current registry contents for /health, ordered
// by run id.
func (r *Registry) Snapshot() []RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	statuses := make([]RunStatus, 0, len(r.runs))
	for _, run := range r.runs {
		statuses = append(statuses, RunStatus{
			ID:     run.ID,
			PID:    run.Handle.PID(),
			Reason: run.Reason,
			Issue:  run.Issue,
			AgeSec: int64(now.Sub(run.StartedAt).Seconds()),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

// logSweep records sweep results. Quiet when nothing happened — the
// sweep runs on every request and a log line per no-op sweep is noise.
func logSweep(logger *slog.Logger, reaped, killed []int64) {
	if len(reaped) > 0 {
		logger.Info("reaped exited runs", "runs", reaped)
	}
	if len(killed) > 0 {
		logger.Info("killed timed-out runs", "runs", killed)
	}
}
