// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret loads the shared trigger secret from a file or stdin.
// The secret authenticates callers of POST /trigger, so loading is
// strict: whitespace is trimmed, empty values are rejected, and a
// secret file readable by group or other is refused.
package secret
