// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides a minimal time abstraction for testability.
// The reaper's timeout arithmetic and /health run ages are pure
// functions of Clock.Now, so tests drive them with a FakeClock instead
// of sleeping.
package clock
