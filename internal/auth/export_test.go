// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package auth

import "time"

// SetTokenClock replaces the clock a TokenService reads.
func SetTokenClock(s *TokenService, now func() time.Time) {
	s.now = now
}
