package mocks

import (
	"context"

	"github.com/brettbedarf/workspacefs"
	"github.com/stretchr/testify/mock"
)

// MockFileSystem implements workspacefs.FileSystem for testing across packages
type MockFileSystem struct {
	mock.Mock
}

var _ workspacefs.FileSystem = (*MockFileSystem)(nil)

func (m *MockFileSystem) CurrentDirectory() string {
	return m.Called().String(0)
}

func (m *MockFileSystem) SetCurrentDirectory(path string) error {
	return m.Called(path).Error(0)
}

func (m *MockFileSystem) Exists(path string) bool {
	return m.Called(path).Bool(0)
}

func (m *MockFileSystem) IsDirectory(path string) bool {
	return m.Called(path).Bool(0)
}

func (m *MockFileSystem) IsFile(path string) bool {
	return m.Called(path).Bool(0)
}

func (m *MockFileSystem) ListDirectory(path string) ([]workspacefs.Entry, error) {
	args := m.Called(path)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]workspacefs.Entry), args.Error(1)
}

func (m *MockFileSystem) ReadFile(path string) (string, error) {
	args := m.Called(path)

	// Handle function return types (for content that changes between calls)
	if fn, ok := args.Get(0).(func(string) string); ok {
		return fn(path), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

func (m *MockFileSystem) WriteFile(path, content string) error {
	return m.Called(path, content).Error(0)
}

func (m *MockFileSystem) CreateDirectory(path string) error {
	return m.Called(path).Error(0)
}

func (m *MockFileSystem) Delete(path string) error {
	return m.Called(path).Error(0)
}

// MockFlushingFileSystem adds the flush and refresh capabilities
type MockFlushingFileSystem struct {
	MockFileSystem
}

var (
	_ workspacefs.Flusher   = (*MockFlushingFileSystem)(nil)
	_ workspacefs.Refresher = (*MockFlushingFileSystem)(nil)
)

func (m *MockFlushingFileSystem) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockFlushingFileSystem) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
