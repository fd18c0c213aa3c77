// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import "testing"

func TestVerifyBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		secret string
		want   bool
	}{
		{"exact_match", "Bearer s3cr3t", "s3cr3t", true},
		{"wrong_secret", "Bearer wrong1", "s3cr3t", false},
		{"same_length_one_byte_off", "Bearer s3cr3T", "s3cr3t", false},
		{"lowercase_scheme", "bearer s3cr3t", "s3cr3t", false},
		{"uppercase_scheme", "BEARER s3cr3t", "s3cr3t", false},
		{"extra_space", "Bearer  s3cr3t", "s3cr3t", false},
		{"trailing_space", "Bearer s3cr3t ", "s3cr3t", false},
		{"missing_scheme", "s3cr3t", "s3cr3t", false},
		{"empty_header", "", "s3cr3t", false},
		{"prefix_only", "Bearer ", "s3cr3t", false},
		{"secret_prefix", "Bearer s3cr", "s3cr3t", false},
		{"secret_with_suffix", "Bearer s3cr3tX", "s3cr3t", false},
		{"empty_secret_matches_prefix", "Bearer ", "", true},
		{"empty_secret_rejects_token", "Bearer x", "", false},
		{"empty_secret_rejects_empty_header", "", "", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := VerifyBearer(test.header, []byte(test.secret)); got != test.want {
				t.Errorf("VerifyBearer(%q, %q) = %v, want %v", test.header, test.secret, got, test.want)
			}
		})
	}
}
