// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trigger implements the triggered-run admission controller:
// an authenticated HTTP service that starts the configured automation
// script on demand, bounds how many runs execute concurrently,
// deduplicates in-flight work per issue, supervises the spawned
// processes, and streams each run's output back to its caller.
//
// Admission is a strictly ordered pipeline — shutdown, authentication,
// capacity, reason, issue, duplicate — and the registry of live runs is
// the sole source of truth for occupied capacity. All registry
// mutation happens under one lock, so concurrent HTTP handlers cannot
// double-admit past the capacity or duplicate checks.
package trigger
