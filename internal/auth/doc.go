// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package auth implements the credential lifecycle of Authentic.
//
// # Domain Types
//
// A Principal is a registered user. It should be created with NewPrincipal,
// which validates the email and requires a pending verification Challenge.
// Principals are returned to callers only as a PrincipalView, which carries
// no password hash and no challenge tokens.
//
// # Challenges
//
// Two kinds of Challenge exist:
//   - verification codes, six digits valid for 24 hours, stored as issued
//   - reset tokens, 40 hex characters valid for 1 hour, stored as HashResetToken digests
//
// A PrincipalStore consumes a challenge in a single conditional update, so
// each one succeeds at most once.
//
// # Service
//
// Service coordinates the flows: Signup, VerifyEmail, Login, Logout,
// ForgotPassword, ResetPassword and CheckAuth. Every error it returns
// classifies into a Kind via KindOf; PublicMessage gives the text that may
// be shown to a client.
package auth
