// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/authentic-auth/authentic/internal/auth"
)

// MockNotifier is a mock of auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a MockNotifier whose expectations are asserted
// when the test ends.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Notify provides a mock function.
func (m *MockNotifier) Notify(ctx context.Context, n auth.Notification) error {
	ret := m.Called(ctx, n)
	return ret.Error(0)
}
