// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. These centralize
// the one legitimate raw-I/O pattern in service binaries: fatal error
// reporting to stderr before the structured logger exists. All other
// output in the trigger service goes through slog.
package process
