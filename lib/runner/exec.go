// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExecRunner starts runs as OS processes.
type ExecRunner struct{}

// NewExecRunner returns the production Runner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Start launches opts.Script in its own process group. The process
// group (rather than the single pid) is what Terminate kills, so
// children spawned by the script are terminated with it.
func (e *ExecRunner) Start(opts StartOptions) (Handle, error) {
	cmd := exec.Command(opts.Script)
	cmd.Dir = opts.WorkingDirectory
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if len(opts.Env) > 0 {
		cmd.Env = os.Environ()
		for name, value := range opts.Env {
			cmd.Env = append(cmd.Env, name+"="+value)
		}
	}

	// Combined stdout+stderr through a single pipe so output is
	// forwarded in the order the process produced it. The parent's
	// write end is closed after Start; the read end delivers EOF once
	// the process (and its children holding the fd) exit.
	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = writeEnd
	cmd.Stderr = writeEnd

	if err := cmd.Start(); err != nil {
		readEnd.Close()
		writeEnd.Close()
		return nil, fmt.Errorf("starting %s: %w", opts.Script, err)
	}
	writeEnd.Close()

	handle := &execHandle{
		cmd:    cmd,
		output: readEnd,
		done:   make(chan struct{}),
	}
	return handle, nil
}

type execHandle struct {
	cmd    *exec.Cmd
	output *os.File

	waitOnce sync.Once
	exitCode int
	waitErr  error

	// done is closed once Wait has observed the exit. Alive consults
	// it so a wait-collected process never probes as a zombie.
	done chan struct{}
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

// Alive probes the process with signal 0. ESRCH means the process is
// gone; EPERM means it exists but belongs to someone else (still
// alive); any other errno is reported as unknown rather than dead.
func (h *execHandle) Alive() (bool, error) {
	select {
	case <-h.done:
		return false, nil
	default:
	}

	err := unix.Kill(h.cmd.Process.Pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		return true, nil
	default:
		return false, fmt.Errorf("probing pid %d: %w", h.cmd.Process.Pid, err)
	}
}

// Terminate SIGKILLs the whole process group. ESRCH (group already
// gone) is not an error.
func (h *execHandle) Terminate() error {
	err := unix.Kill(-h.cmd.Process.Pid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("killing process group %d: %w", h.cmd.Process.Pid, err)
	}
	return nil
}

func (h *execHandle) Wait() (int, error) {
	h.waitOnce.Do(func() {
		defer close(h.done)
		h.output.Close()

		err := h.cmd.Wait()
		if err == nil {
			h.exitCode = 0
			return
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Killed-by-signal processes report -1 here; the
			// caller surfaces that in the completion footer.
			h.exitCode = exitErr.ExitCode()
			return
		}
		h.exitCode = -1
		h.waitErr = err
	})
	return h.exitCode, h.waitErr
}

func (h *execHandle) Output() io.Reader { return h.output }
