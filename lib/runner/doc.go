// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner provides the process-executor capability the trigger
// service supervises runs through. A Runner starts the configured
// automation script and returns a Handle exposing liveness probing,
// forced termination, output streaming, and exit-code retrieval. The
// supervision logic never touches os/exec directly, so it stays
// portable and testable against fake handles.
package runner
