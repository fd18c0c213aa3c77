// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

// Reason and issue values reach the automation script's environment,
// so both are validated against closed grammars instead of escaped.
// Anything outside the grammar — shell metacharacters, newlines, null
// bytes included — is rejected before a process is ever started.

// DefaultReason is used when a trigger request omits the reason
// parameter.
const DefaultReason = "manual"

// allowedReasons is the closed set of trigger reasons.
var allowedReasons = map[string]struct{}{
	"manual":        {},
	"schedule":      {},
	"issues":        {},
	"team_building": {},
	"triage":        {},
	"review_all":    {},
	"hygiene":       {},
}

// ValidReason reports whether reason is a member of the allowlist.
// The empty string is not valid; callers substitute DefaultReason for
// an absent parameter before validating.
func ValidReason(reason string) bool {
	_, ok := allowedReasons[reason]
	return ok
}

// ValidIssue reports whether issue is an acceptable issue identifier:
// either empty (no issue) or one or more decimal digits. No sign, no
// decimal point, no surrounding whitespace. Leading zeros are digits
// and therefore accepted.
func ValidIssue(issue string) bool {
	if issue == "" {
		return true
	}
	for i := 0; i < len(issue); i++ {
		if issue[i] < '0' || issue[i] > '9' {
			return false
		}
	}
	return true
}
