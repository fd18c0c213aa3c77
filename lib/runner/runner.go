// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import "io"

// StartOptions contains the parameters for starting a run.
type StartOptions struct {
	// Script is the path to the executable to launch.
	Script string

	// WorkingDirectory is the directory the process starts in.
	// Empty means the current working directory.
	WorkingDirectory string

	// Env holds extra environment variables appended to the
	// service's own environment. Values reach the child only through
	// the environment, never through argv.
	Env map[string]string
}

// Runner starts runs. The production implementation is ExecRunner;
// tests substitute fakes.
type Runner interface {
	// Start launches the process and returns a handle to it. The
	// process is not bound to any context: once started, only
	// Terminate (or its own exit) ends it.
	Start(opts StartOptions) (Handle, error)
}

// Handle represents one spawned run process.
type Handle interface {
	// PID returns the OS process id.
	PID() int

	// Alive reports whether the process is still running. The error
	// is non-nil only when the probe itself failed and liveness is
	// unknown — callers must not treat that as "dead".
	Alive() (bool, error)

	// Terminate forcibly kills the process (and any children it
	// spawned). Best effort: terminating an already-dead process is
	// not an error. It does not wait for the process to be reaped.
	Terminate() error

	// Wait blocks until the process exits and returns its exit code.
	// The exit code is -1 when the process was killed by a signal.
	// Safe to call once; callers must finish reading Output first.
	Wait() (int, error)

	// Output streams the process's combined stdout and stderr as it
	// is produced.
	Output() io.Reader
}
