// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package mocks provides testify mocks of the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/authentic-auth/authentic/internal/auth"
)

// MockPrincipalStore is a mock of auth.PrincipalStore.
type MockPrincipalStore struct {
	mock.Mock
}

// NewMockPrincipalStore creates a MockPrincipalStore whose expectations are
// asserted when the test ends.
func NewMockPrincipalStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPrincipalStore {
	m := &MockPrincipalStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockPrincipalStore) Create(ctx context.Context, p *auth.Principal) error {
	ret := m.Called(ctx, p)
	return ret.Error(0)
}

// GetByID provides a mock function.
func (m *MockPrincipalStore) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	ret := m.Called(ctx, id)
	return principalAt(ret, 0), ret.Error(1)
}

// GetByEmail provides a mock function.
func (m *MockPrincipalStore) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	ret := m.Called(ctx, email)
	return principalAt(ret, 0), ret.Error(1)
}

// RecordLogin provides a mock function.
func (m *MockPrincipalStore) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	ret := m.Called(ctx, id, at)
	return ret.Error(0)
}

// SetResetChallenge provides a mock function.
func (m *MockPrincipalStore) SetResetChallenge(ctx context.Context, id ulid.ULID, reset auth.Challenge, at time.Time) error {
	ret := m.Called(ctx, id, reset, at)
	return ret.Error(0)
}

// ConsumeVerification provides a mock function.
func (m *MockPrincipalStore) ConsumeVerification(ctx context.Context, code string, now time.Time) (*auth.Principal, error) {
	ret := m.Called(ctx, code, now)
	return principalAt(ret, 0), ret.Error(1)
}

// ConsumeReset provides a mock function.
func (m *MockPrincipalStore) ConsumeReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Principal, error) {
	ret := m.Called(ctx, tokenHash, passwordHash, now)
	return principalAt(ret, 0), ret.Error(1)
}

// Ping provides a mock function.
func (m *MockPrincipalStore) Ping(ctx context.Context) error {
	ret := m.Called(ctx)
	return ret.Error(0)
}

func principalAt(ret mock.Arguments, i int) *auth.Principal {
	v := ret.Get(i)
	if v == nil {
		return nil
	}
	return v.(*auth.Principal) //nolint:forcetypeassert // mock return values are set by the test
}
