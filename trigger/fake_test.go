// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"fmt"
	"io"
	"sync"

	"github.com/bureau-foundation/trigger/lib/runner"
)

// fakeHandle is a controllable runner.Handle. Output flows through an
// in-memory pipe; exit delivers the code to Wait and EOF to Output.
type fakeHandle struct {
	pid     int
	reader  *io.PipeReader
	writer  *io.PipeWriter
	exited  chan struct{}
	onceEnd sync.Once

	mu         sync.Mutex
	alive      bool
	aliveErr   error
	terminated bool
	exitCode   int
}

func newFakeHandle(pid int) *fakeHandle {
	reader, writer := io.Pipe()
	return &fakeHandle{
		pid:    pid,
		reader: reader,
		writer: writer,
		exited: make(chan struct{}),
		alive:  true,
	}
}

// emit writes a chunk of process output. Blocks until the streaming
// side has consumed it (pipe semantics).
func (h *fakeHandle) emit(chunk string) {
	h.writer.Write([]byte(chunk))
}

// exit marks the process dead with the given code, ends the output
// stream, and unblocks Wait.
func (h *fakeHandle) exit(code int) {
	h.onceEnd.Do(func() {
		h.mu.Lock()
		h.alive = false
		h.exitCode = code
		h.mu.Unlock()
		h.writer.Close()
		close(h.exited)
	})
}

// setAliveErr makes the liveness probe fail.
func (h *fakeHandle) setAliveErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aliveErr = err
}

func (h *fakeHandle) wasTerminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) Alive() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.aliveErr != nil {
		return false, h.aliveErr
	}
	return h.alive, nil
}

func (h *fakeHandle) Terminate() error {
	h.mu.Lock()
	h.terminated = true
	h.mu.Unlock()
	h.exit(-1)
	return nil
}

func (h *fakeHandle) Wait() (int, error) {
	<-h.exited
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, nil
}

func (h *fakeHandle) Output() io.Reader { return h.reader }

// fakeRunner hands out fakeHandles and records start options.
type fakeRunner struct {
	mu       sync.Mutex
	nextPID  int
	startErr error
	starts   []runner.StartOptions

	// started receives each handle as it is created so tests can
	// drive the process from another goroutine.
	started chan *fakeHandle
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		nextPID: 1000,
		started: make(chan *fakeHandle, 16),
	}
}

func (r *fakeRunner) Start(opts runner.StartOptions) (runner.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.nextPID++
	r.starts = append(r.starts, opts)
	handle := newFakeHandle(r.nextPID)
	r.started <- handle
	return handle, nil
}

func (r *fakeRunner) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts)
}

func (r *fakeRunner) lastStart() (runner.StartOptions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.starts) == 0 {
		return runner.StartOptions{}, fmt.Errorf("no starts recorded")
	}
	return r.starts[len(r.starts)-1], nil
}
