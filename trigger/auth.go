// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import "crypto/subtle"

// VerifyBearer reports whether the presented Authorization header value
// is exactly "Bearer " + secret.
//
// The comparison is constant-time in the header's content so an
// attacker cannot recover the secret byte-by-byte from response
// timing. Length alone is not treated as sensitive — mismatched
// lengths return early. The scheme keyword is case-sensitive and no
// whitespace tolerance is applied: "bearer x" and "Bearer  x" both
// fail against secret "x".
func VerifyBearer(header string, secret []byte) bool {
	expected := make([]byte, 0, len(bearerPrefix)+len(secret))
	expected = append(expected, bearerPrefix...)
	expected = append(expected, secret...)

	if len(header) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), expected) == 1
}

const bearerPrefix = "Bearer "
