// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package auth

import "time"

// SetSessionClock replaces the clock of a SessionIssuer.
func SetSessionClock(s *SessionIssuer, now func() time.Time) {
	s.now = now
}

// DummyPasswordHash exposes the login timing placeholder digest.
const DummyPasswordHash = dummyPasswordHash
