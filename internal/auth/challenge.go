// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/samber/oops"
)

// Challenge configuration.
const (
	VerificationCodeDigits = 6
	VerificationCodeExpiry = 24 * time.Hour

	ResetTokenBytes  = 20        // 20 bytes = 40 hex chars
	ResetTokenExpiry = time.Hour // 1 hour expiry
)

// verificationCodeFloor and verificationCodeSpan keep codes within
// 100000..999999 so they are always six digits without padding.
var (
	verificationCodeFloor = big.NewInt(100000)
	verificationCodeSpan  = big.NewInt(900000)
)

// NewVerificationChallenge generates a six-digit email verification code
// valid for VerificationCodeExpiry from now.
func NewVerificationChallenge(now time.Time) (*Challenge, error) {
	n, err := rand.Int(rand.Reader, verificationCodeSpan)
	if err != nil {
		return nil, oops.Code("VERIFICATION_CODE_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}
	n.Add(n, verificationCodeFloor)

	return &Challenge{
		Token:     fmt.Sprintf("%0*d", VerificationCodeDigits, n.Int64()),
		ExpiresAt: now.Add(VerificationCodeExpiry),
	}, nil
}

// NewResetChallenge generates a password reset token valid for
// ResetTokenExpiry from now. The returned challenge holds the plaintext
// token, which is sent to the user; persist HashResetToken(token) instead.
func NewResetChallenge(now time.Time) (*Challenge, error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", ResetTokenBytes).
			Wrap(err)
	}

	return &Challenge{
		Token:     hex.EncodeToString(tokenBytes),
		ExpiresAt: now.Add(ResetTokenExpiry),
	}, nil
}

// HashResetToken computes the SHA256 hash of a reset token.
// Stores only ever see this digest.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
