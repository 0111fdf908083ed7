// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Challenge is a transient credential: an opaque token and its expiry.
// A nil *Challenge means no challenge is outstanding.
type Challenge struct {
	Token     string
	ExpiresAt time.Time
}

// IsExpiredAt returns true if the challenge is no longer valid at t.
func (c *Challenge) IsExpiredAt(t time.Time) bool {
	return !c.ExpiresAt.After(t)
}

// Principal is the stored record of a registered user.
// PasswordHash and the challenges never leave the store boundary;
// use View for anything returned to callers.
type Principal struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Name         string
	Verified     bool
	LastLoginAt  *time.Time
	Verification *Challenge
	Reset        *Challenge
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrincipalView is the outward-facing representation of a Principal.
type PrincipalView struct {
	ID          string     `json:"_id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Verified    bool       `json:"isVerified"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// View returns the outward-facing view of p.
func (p *Principal) View() *PrincipalView {
	return &PrincipalView{
		ID:          p.ID.String(),
		Email:       p.Email,
		Name:        p.Name,
		Verified:    p.Verified,
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// NewPrincipal creates an unverified Principal with a pending verification
// challenge. Email and name are trimmed; all arguments are required.
func NewPrincipal(email, name, passwordHash string, verification *Challenge, now time.Time) (*Principal, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || passwordHash == "" {
		return nil, validationError(MsgAllFieldsRequired)
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if verification == nil || verification.Token == "" || verification.ExpiresAt.IsZero() {
		return nil, oops.Code("PRINCIPAL_INVALID_CHALLENGE").Errorf("verification challenge is required")
	}

	return &Principal{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Verification: verification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateEmail checks that email is a bare address such as "a@x.com".
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code(CodeValidation).
			With("email", email).
			Public("Invalid email address").
			Errorf("invalid email address")
	}
	return nil
}

// PrincipalStore persists principals. Implementations must make every
// Consume* call a single atomic match-then-mutate so that a challenge can
// be consumed at most once under concurrent requests.
type PrincipalStore interface {
	// Create stores a new principal.
	// Returns an error wrapping ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, p *Principal) error

	// GetByID retrieves a principal by ID.
	// Returns an error wrapping ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Principal, error)

	// GetByEmail retrieves a principal by exact email.
	// Returns an error wrapping ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// RecordLogin sets the last login timestamp.
	RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// SetResetChallenge stores a reset challenge, replacing any previous one,
	// and stamps the update with at.
	SetResetChallenge(ctx context.Context, id ulid.ULID, reset Challenge, at time.Time) error

	// ConsumeVerification finds the principal whose verification token equals
	// code and has not expired at now, marks it verified and clears the
	// challenge. Returns an error wrapping ErrNotFound if nothing matched.
	ConsumeVerification(ctx context.Context, code string, now time.Time) (*Principal, error)

	// ConsumeReset finds the principal whose reset token equals tokenHash
	// and has not expired at now, replaces its password hash and clears the
	// challenge. Returns an error wrapping ErrNotFound if nothing matched.
	ConsumeReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*Principal, error)

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error
}
