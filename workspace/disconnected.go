package workspace

import (
	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/pathutil"
)

// disconnectedFS stands in for a local workspace without access.
// Every call fails Disconnected.
type disconnectedFS struct{}

var _ workspacefs.FileSystem = disconnectedFS{}

func errDisconnected(op, path string) error {
	return workspacefs.NewError(op, pathutil.Normalize(path), workspacefs.ErrDisconnected)
}

func (disconnectedFS) CurrentDirectory() string { return pathutil.Root }

func (disconnectedFS) SetCurrentDirectory(path string) error {
	return errDisconnected(workspacefs.OpChdir, path)
}

func (disconnectedFS) Connected() bool         { return false }
func (disconnectedFS) Exists(string) bool      { return false }
func (disconnectedFS) IsDirectory(string) bool { return false }
func (disconnectedFS) IsFile(string) bool      { return false }

func (disconnectedFS) ListDirectory(path string) ([]workspacefs.Entry, error) {
	return nil, errDisconnected(workspacefs.OpList, path)
}

func (disconnectedFS) ReadFile(path string) (string, error) {
	return "", errDisconnected(workspacefs.OpRead, path)
}

func (disconnectedFS) WriteFile(path, _ string) error {
	return errDisconnected(workspacefs.OpWrite, path)
}

func (disconnectedFS) CreateDirectory(path string) error {
	return errDisconnected(workspacefs.OpMkdir, path)
}

func (disconnectedFS) Delete(path string) error {
	return errDisconnected(workspacefs.OpRemove, path)
}
