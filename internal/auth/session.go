// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenExpiry = 7 * 24 * time.Hour // 7 day expiry
	MinSigningKeyBytes = 32
)

// SessionClaims are the claims carried by a session token.
// Only the principal id is bound into the token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// SessionToken is a signed session token and its expiry.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// SessionIssuer signs and validates HS256 session tokens.
// It is safe for concurrent use.
type SessionIssuer struct {
	key    []byte
	expiry time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates a SessionIssuer. The key is loaded once at
// startup and never rotated at runtime.
func NewSessionIssuer(key []byte) (*SessionIssuer, error) {
	if len(key) < MinSigningKeyBytes {
		return nil, oops.Code("SESSION_KEY_INVALID").
			With("min_bytes", MinSigningKeyBytes).
			Errorf("session signing key must be at least %d bytes", MinSigningKeyBytes)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &SessionIssuer{key: k, expiry: SessionTokenExpiry, now: time.Now}, nil
}

// Expiry returns the lifetime of issued tokens.
func (s *SessionIssuer) Expiry() time.Duration {
	return s.expiry
}

// Issue produces a signed token for the principal.
func (s *SessionIssuer) Issue(principalID ulid.ULID) (SessionToken, error) {
	if principalID.Compare(ulid.ULID{}) == 0 {
		return SessionToken{}, oops.Code("SESSION_INVALID_PRINCIPAL").Errorf("principal ID cannot be zero")
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: principalID.String(),
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return SessionToken{}, oops.Code("SESSION_SIGN_FAILED").
			With("principal_id", principalID.String()).
			Wrap(err)
	}
	return SessionToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Validate verifies the token signature and expiry and returns the
// principal id it carries. Every failure is AUTH_UNAUTHORIZED.
func (s *SessionIssuer) Validate(token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code(CodeUnauthorized).
			Public(MsgNoToken).
			Errorf("session token cannot be empty")
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		reason := "invalid"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		}
		return ulid.ULID{}, oops.Code(CodeUnauthorized).
			With("reason", reason).
			Public(MsgUnauthorized).
			Errorf("invalid session token")
	}

	id, err := ulid.Parse(claims.UserID)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeUnauthorized).
			With("reason", "bad subject").
			Public(MsgUnauthorized).
			Errorf("invalid session token")
	}
	return id, nil
}
