// Package workspacefs contains the core contract shared by every provider that
// can be mounted into the workspace namespace.
package workspacefs

import "context"

// EntryType distinguishes files from folders in listings and trees
type EntryType string

const (
	FileEntry   EntryType = "file"
	FolderEntry EntryType = "folder"
)

// Entry is a single child returned by [FileSystem.ListDirectory]
type Entry struct {
	Name string    `json:"name"`
	Type EntryType `json:"type"`
	Path string    `json:"path"`
}

// IsDir reports whether the entry is a folder
func (e Entry) IsDir() bool { return e.Type == FolderEntry }

// FileSystem is the contract every mountable provider implements.
// All paths are absolute within the provider; providers normalize them on entry.
type FileSystem interface {
	CurrentDirectory() string
	// SetCurrentDirectory fails unless path names an existing directory
	SetCurrentDirectory(path string) error

	Exists(path string) bool
	IsDirectory(path string) bool
	IsFile(path string) bool

	// ListDirectory returns the direct children of path
	ListDirectory(path string) ([]Entry, error)
	ReadFile(path string) (string, error)
	// WriteFile creates the file if missing, overwrites it otherwise
	WriteFile(path, content string) error
	CreateDirectory(path string) error
	// Delete removes a file, or a folder with everything beneath it
	Delete(path string) error
}

// Flusher is implemented by providers that buffer writes
type Flusher interface {
	Flush(ctx context.Context) error
}

// Refresher is implemented by providers whose backing data can change underneath them
type Refresher interface {
	Refresh(ctx context.Context) error
}

// BinaryReader is implemented by providers that can hold non-text content
type BinaryReader interface {
	ReadBinaryFile(path string) ([]byte, error)
	IsBinaryFile(path string) bool
}

// Renamer is implemented by providers with a native atomic rename.
// oldPath and newPath are both full paths within the provider.
type Renamer interface {
	RenamePath(oldPath, newPath string) error
}

// ConnectionReporter is implemented by providers backed by something that can
// go away, such as a user-granted directory
type ConnectionReporter interface {
	Connected() bool
}

// Capability is a bitset of the optional interfaces a provider implements
type Capability uint8

const (
	CapFlush Capability = 1 << iota
	CapRefresh
	CapBinary
	CapRename
)

// Has reports whether every bit of o is set in c
func (c Capability) Has(o Capability) bool { return c&o == o }

// Capabilities inspects fs for the optional interfaces
func Capabilities(fs FileSystem) Capability {
	var c Capability
	if _, ok := fs.(Flusher); ok {
		c |= CapFlush
	}
	if _, ok := fs.(Refresher); ok {
		c |= CapRefresh
	}
	if _, ok := fs.(BinaryReader); ok {
		c |= CapBinary
	}
	if _, ok := fs.(Renamer); ok {
		c |= CapRename
	}
	return c
}

// Connected reports whether fs can serve calls. Providers without a
// connection to lose are always connected.
func Connected(fs FileSystem) bool {
	if c, ok := fs.(ConnectionReporter); ok {
		return c.Connected()
	}
	return true
}

// Flush flushes fs if it buffers writes and is a no-op otherwise
func Flush(ctx context.Context, fs FileSystem) error {
	if f, ok := fs.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Refresh reloads fs if it supports it and is a no-op otherwise
func Refresh(ctx context.Context, fs FileSystem) error {
	if r, ok := fs.(Refresher); ok {
		return r.Refresh(ctx)
	}
	return nil
}

// ReadBinary returns the raw bytes of a file, falling back to the text content
// for providers without binary support
func ReadBinary(fs FileSystem, path string) ([]byte, error) {
	if b, ok := fs.(BinaryReader); ok {
		return b.ReadBinaryFile(path)
	}
	s, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
