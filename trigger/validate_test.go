// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import "testing"

func TestValidReason(t *testing.T) {
	for _, reason := range []string{"manual", "schedule", "issues", "team_building", "triage", "review_all", "hygiene"} {
		if !ValidReason(reason) {
			t.Errorf("ValidReason(%q) = false, want true", reason)
		}
	}

	invalid := []struct {
		name   string
		reason string
	}{
		{"empty", ""},
		{"unknown", "deploy"},
		{"mixed_case", "Manual"},
		{"upper_case", "SCHEDULE"},
		{"semicolon", "manual;rm -rf /"},
		{"pipe", "manual|cat"},
		{"backticks", "`id`"},
		{"subshell", "$(id)"},
		{"newline", "manual\nschedule"},
		{"null_byte", "manual\x00"},
		{"surrounding_space", " manual"},
	}
	for _, test := range invalid {
		t.Run(test.name, func(t *testing.T) {
			if ValidReason(test.reason) {
				t.Errorf("ValidReason(%q) = true, want false", test.reason)
			}
		})
	}
}

func TestValidIssue(t *testing.T) {
	tests := []struct {
		name  string
		issue string
		want  bool
	}{
		{"empty_is_no_issue", "", true},
		{"single_digit", "7", true},
		{"multi_digit", "1234567890", true},
		{"leading_zero", "042", true},
		{"all_zeros", "000", true},
		{"negative", "-42", false},
		{"plus_sign", "+42", false},
		{"decimal", "4.2", false},
		{"letters", "42a", false},
		{"hex", "0x2a", false},
		{"leading_space", " 42", false},
		{"trailing_space", "42 ", false},
		{"newline", "42\n", false},
		{"semicolon", "42;id", false},
		{"subshell", "$(id)", false},
		{"null_byte", "42\x00", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ValidIssue(test.issue); got != test.want {
				t.Errorf("ValidIssue(%q) = %v, want %v", test.issue, got, test.want)
			}
		})
	}
}
