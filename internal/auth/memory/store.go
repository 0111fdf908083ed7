// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package memory provides an in-process PrincipalStore for development and
// tests. Data does not survive a restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authentic-auth/authentic/internal/auth"
)

// Store is a mutex-guarded map of principals keyed by ID.
type Store struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.Principal
	byEmail map[string]ulid.ULID
}

// Compile-time interface check.
var _ auth.PrincipalStore = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[ulid.ULID]*auth.Principal),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a copy of p.
func (s *Store) Create(_ context.Context, p *auth.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(p.Email)
	if _, exists := s.byEmail[key]; exists {
		return oops.Code("PRINCIPAL_CREATE_FAILED").With("email", p.Email).Wrap(auth.ErrDuplicateEmail)
	}
	if p.Verification != nil {
		for _, other := range s.byID {
			if other.Verification != nil && other.Verification.Token == p.Verification.Token {
				return oops.Code("PRINCIPAL_CREATE_FAILED").With("email", p.Email).Wrap(auth.ErrDuplicateChallenge)
			}
		}
	}
	s.byID[p.ID] = clonePrincipal(p)
	s.byEmail[key] = p.ID
	return nil
}

// GetByID returns a copy of the principal with the given ID.
func (s *Store) GetByID(_ context.Context, id ulid.ULID) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return clonePrincipal(p), nil
}

// GetByEmail returns a copy of the principal with the given email.
func (s *Store) GetByEmail(_ context.Context, email string) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return clonePrincipal(s.byID[id]), nil
}

// RecordLogin sets the last login timestamp.
func (s *Store) RecordLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return oops.Code("PRINCIPAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	p.LastLoginAt = &at
	p.UpdatedAt = at
	return nil
}

// SetResetChallenge replaces the principal's reset challenge.
func (s *Store) SetResetChallenge(_ context.Context, id ulid.ULID, reset auth.Challenge, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return oops.Code("PRINCIPAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	p.Reset = &reset
	p.UpdatedAt = at
	return nil
}

// ConsumeVerification marks the principal holding an unexpired code as
// verified and clears the code.
func (s *Store) ConsumeVerification(_ context.Context, code string, now time.Time) (*auth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.byID {
		if p.Verification == nil || p.Verification.Token != code || p.Verification.IsExpiredAt(now) {
			continue
		}
		p.Verified = true
		p.Verification = nil
		p.UpdatedAt = now
		return clonePrincipal(p), nil
	}
	return nil, oops.Code("VERIFICATION_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// ConsumeReset replaces the password of the principal holding an unexpired
// reset digest and clears the challenge.
func (s *Store) ConsumeReset(_ context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.byID {
		if p.Reset == nil || p.Reset.Token != tokenHash || p.Reset.IsExpiredAt(now) {
			continue
		}
		p.PasswordHash = passwordHash
		p.Reset = nil
		p.UpdatedAt = now
		return clonePrincipal(p), nil
	}
	return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of stored principals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func emailKey(email string) string {
	return strings.TrimSpace(email)
}

func clonePrincipal(p *auth.Principal) *auth.Principal {
	c := *p
	if p.LastLoginAt != nil {
		t := *p.LastLoginAt
		c.LastLoginAt = &t
	}
	if p.Verification != nil {
		v := *p.Verification
		c.Verification = &v
	}
	if p.Reset != nil {
		r := *p.Reset
		c.Reset = &r
	}
	return &c
}
