// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by stores when a requested principal does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by stores when a principal with the same
// email already exists.
var ErrDuplicateEmail = errors.New("duplicate email")

// ErrDuplicateChallenge is returned by stores when another pending principal
// already holds the same verification code.
var ErrDuplicateChallenge = errors.New("duplicate challenge")

// Error codes surfaced by the credential lifecycle. Every failure returned by
// Service carries exactly one of these codes, or a server-side code.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeConflict           = "AUTH_CONFLICT"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidOrExpired   = "AUTH_INVALID_OR_EXPIRED"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeNotFound           = "AUTH_NOT_FOUND"
)

// Public messages for each client-facing error kind.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgVerifyInvalid      = "Invalid or expired verification code"
	MsgResetInvalid       = "Invalid or expired reset token"
	MsgUserExists         = "User already exists"
	MsgUserNotFound       = "User not found"
	MsgUnauthorized       = "Unauthorized - invalid token"
	MsgNoToken            = "Unauthorized - no token provided"
	MsgAllFieldsRequired  = "All fields are required"
)

// Kind classifies an error into the client-visible taxonomy.
type Kind int

// Error kinds, ordered by how the HTTP layer treats them.
const (
	KindServer Kind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindInvalidOrExpired
	KindUnauthorized
	KindNotFound
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindConflict:
		return "Conflict"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindInvalidOrExpired:
		return "InvalidOrExpired"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "NotFound"
	default:
		return "ServerError"
	}
}

// KindOf returns the kind of err based on its oops code.
// Errors without a recognized code are server errors.
func KindOf(err error) Kind {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindServer
	}
	code, _ := oopsErr.Code().(string) //nolint:errcheck // type assertion, not an error
	switch code {
	case CodeValidation:
		return KindValidation
	case CodeConflict:
		return KindConflict
	case CodeInvalidCredentials:
		return KindInvalidCredentials
	case CodeInvalidOrExpired:
		return KindInvalidOrExpired
	case CodeUnauthorized:
		return KindUnauthorized
	case CodeNotFound:
		return KindNotFound
	default:
		return KindServer
	}
}

// PublicMessage returns the message that may be shown to a client for err.
// Server errors never expose their cause.
func PublicMessage(err error) string {
	if KindOf(err) == KindServer {
		return "Server error"
	}
	oopsErr, _ := oops.AsOops(err) //nolint:errcheck // KindOf already matched an oops error
	if msg := oopsErr.Public(); msg != "" {
		return msg
	}
	return oopsErr.Error()
}

func validationError(msg string) error {
	return oops.Code(CodeValidation).Public(msg).Errorf("%s", msg)
}
