package mocks

import (
	"context"

	"github.com/brettbedarf/workspacefs/localdir"
	"github.com/stretchr/testify/mock"
)

// MockHandleStore implements workspace.HandleStore for testing across packages
type MockHandleStore struct {
	mock.Mock
}

func (m *MockHandleStore) Store(ctx context.Context, mountID string, h localdir.Handle) error {
	return m.Called(ctx, mountID, h).Error(0)
}

func (m *MockHandleStore) Get(ctx context.Context, mountID string) (localdir.Handle, error) {
	args := m.Called(ctx, mountID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(localdir.Handle), args.Error(1)
}

func (m *MockHandleStore) Remove(ctx context.Context, mountID string) error {
	return m.Called(ctx, mountID).Error(0)
}

func (m *MockHandleStore) RequestPermission(ctx context.Context, h localdir.Handle) (localdir.Permission, error) {
	args := m.Called(ctx, h)
	return args.Get(0).(localdir.Permission), args.Error(1)
}
