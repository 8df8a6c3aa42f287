// Package composite routes path-addressed operations to the mount owning each
// path, presenting every workspace under one namespace.
package composite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/pathutil"
)

var (
	_ workspacefs.FileSystem   = (*FileSystem)(nil)
	_ workspacefs.Flusher      = (*FileSystem)(nil)
	_ workspacefs.Refresher    = (*FileSystem)(nil)
	_ workspacefs.BinaryReader = (*FileSystem)(nil)
)

// FileSystem is the composite namespace. Reads of the mount table are
// lock-free; mutations swap in a new table so earlier snapshots stay intact.
type FileSystem struct {
	table   atomic.Pointer[Table]
	writeMu sync.Mutex
	metrics *Metrics
	cwd     pathutil.WorkingDir
}

// Option configures a [FileSystem]
type Option func(*FileSystem)

// WithMetrics records operation counts in m
func WithMetrics(m *Metrics) Option {
	return func(c *FileSystem) { c.metrics = m }
}

// New returns an empty namespace
func New(opts ...Option) *FileSystem {
	c := &FileSystem{}
	c.table.Store(&Table{})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mounts returns the current table snapshot
func (c *FileSystem) Mounts() Table {
	return *c.table.Load()
}

// Mount adds m to the namespace. Mount paths are single top-level segments
// and never nest.
func (c *FileSystem) Mount(m Mount) error {
	logger := util.GetLogger("Composite.Mount")

	m.Path = pathutil.Normalize(m.Path)
	if !validMountPath(m.Path) {
		return workspacefs.Errorf(workspacefs.OpMount, m.Path, workspacefs.ErrInvalidPath, "mount paths must be a single top-level folder")
	}
	if m.Provider == nil {
		return workspacefs.Errorf(workspacefs.OpMount, m.Path, workspacefs.ErrInvalidPath, "mount has no provider")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	cur := *c.table.Load()
	if cur.conflicts(m.Path, "") {
		return workspacefs.NewError(workspacefs.OpMount, m.Path, workspacefs.ErrAlreadyExists)
	}
	next := append(Table{m}, cur...).sorted()
	c.table.Store(&next)
	c.metrics.setMounts(len(next))

	logger.Debug().Str("path", m.Path).Str("name", m.Name).Str("type", m.Type).Msg("Mounted")
	return nil
}

// Unmount removes the mount at path
func (c *FileSystem) Unmount(path string) error {
	path = pathutil.Normalize(path)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	cur := *c.table.Load()
	next := make(Table, 0, len(cur))
	for _, m := range cur {
		if m.Path != path {
			next = append(next, m)
		}
	}
	if len(next) == len(cur) {
		return workspacefs.NewError(workspacefs.OpUnmount, path, workspacefs.ErrNotFound)
	}
	c.table.Store(&next)
	c.metrics.setMounts(len(next))
	return nil
}

// Replace swaps the mount at oldPath for m, which may carry a new path,
// provider or flags
func (c *FileSystem) Replace(oldPath string, m Mount) error {
	oldPath = pathutil.Normalize(oldPath)
	m.Path = pathutil.Normalize(m.Path)
	if !validMountPath(m.Path) {
		return workspacefs.Errorf(workspacefs.OpMount, m.Path, workspacefs.ErrInvalidPath, "mount paths must be a single top-level folder")
	}
	if m.Provider == nil {
		return workspacefs.Errorf(workspacefs.OpMount, m.Path, workspacefs.ErrInvalidPath, "mount has no provider")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	cur := *c.table.Load()
	if _, ok := cur.Lookup(oldPath); !ok {
		return workspacefs.NewError(workspacefs.OpMount, oldPath, workspacefs.ErrNotFound)
	}
	if cur.conflicts(m.Path, oldPath) {
		return workspacefs.NewError(workspacefs.OpMount, m.Path, workspacefs.ErrAlreadyExists)
	}
	next := make(Table, 0, len(cur))
	for _, existing := range cur {
		if existing.Path == oldPath {
			next = append(next, m)
		} else {
			next = append(next, existing)
		}
	}
	next = next.sorted()
	c.table.Store(&next)
	return nil
}

// resolve finds the mount for path, failing for paths outside every mount
func (c *FileSystem) resolve(op, path string) (Mount, string, error) {
	m, rel, ok := c.Mounts().Resolve(path)
	if !ok {
		return Mount{}, "", workspacefs.NewError(op, pathutil.Normalize(path), workspacefs.ErrNotFound)
	}
	return m, rel, nil
}

// rewrap replaces the provider-relative path in err with the namespace path
func rewrap(err error, m Mount) error {
	var fsErr *workspacefs.Error
	if errors.As(err, &fsErr) && fsErr.Path != "" {
		cp := *fsErr
		cp.Path = m.global(fsErr.Path)
		return &cp
	}
	return err
}

func (c *FileSystem) CurrentDirectory() string { return c.cwd.Get() }

func (c *FileSystem) SetCurrentDirectory(path string) error {
	return c.cwd.Set(path, c.IsDirectory, c.Exists)
}

func (c *FileSystem) Exists(path string) bool {
	if pathutil.IsRoot(path) {
		return true
	}
	m, rel, ok := c.Mounts().Resolve(path)
	return ok && m.Provider.Exists(rel)
}

func (c *FileSystem) IsDirectory(path string) bool {
	if pathutil.IsRoot(path) {
		return true
	}
	m, rel, ok := c.Mounts().Resolve(path)
	return ok && m.Provider.IsDirectory(rel)
}

func (c *FileSystem) IsFile(path string) bool {
	m, rel, ok := c.Mounts().Resolve(path)
	return ok && m.Provider.IsFile(rel)
}

// ListDirectory lists path; the root lists one folder per connected mount,
// named after the mount
func (c *FileSystem) ListDirectory(path string) ([]workspacefs.Entry, error) {
	if pathutil.IsRoot(path) {
		var entries []workspacefs.Entry
		for _, m := range c.Mounts().ByName() {
			if m.Disconnected {
				continue
			}
			entries = append(entries, workspacefs.Entry{Name: m.Name, Type: workspacefs.FolderEntry, Path: m.Path})
		}
		return entries, nil
	}

	m, rel, err := c.resolve(workspacefs.OpList, path)
	if err != nil {
		return nil, err
	}
	entries, err := m.Provider.ListDirectory(rel)
	c.metrics.observe(workspacefs.OpList, m.Type, err)
	if err != nil {
		return nil, rewrap(err, m)
	}
	for i := range entries {
		entries[i].Path = m.global(entries[i].Path)
	}
	return entries, nil
}

func (c *FileSystem) ReadFile(path string) (string, error) {
	m, rel, err := c.resolve(workspacefs.OpRead, path)
	if err != nil {
		return "", err
	}
	content, err := m.Provider.ReadFile(rel)
	c.metrics.observe(workspacefs.OpRead, m.Type, err)
	return content, rewrap(err, m)
}

func (c *FileSystem) ReadBinaryFile(path string) ([]byte, error) {
	m, rel, err := c.resolve(workspacefs.OpRead, path)
	if err != nil {
		return nil, err
	}
	data, err := workspacefs.ReadBinary(m.Provider, rel)
	c.metrics.observe(workspacefs.OpRead, m.Type, err)
	return data, rewrap(err, m)
}

func (c *FileSystem) IsBinaryFile(path string) bool {
	m, rel, ok := c.Mounts().Resolve(path)
	if !ok {
		return false
	}
	b, ok := m.Provider.(workspacefs.BinaryReader)
	return ok && b.IsBinaryFile(rel)
}

func (c *FileSystem) WriteFile(path, content string) error {
	m, rel, err := c.resolve(workspacefs.OpWrite, path)
	if err != nil {
		return err
	}
	if rel == pathutil.Root {
		return workspacefs.NewError(workspacefs.OpWrite, m.Path, workspacefs.ErrIsDirectory)
	}
	err = m.Provider.WriteFile(rel, content)
	c.metrics.observe(workspacefs.OpWrite, m.Type, err)
	return rewrap(err, m)
}

func (c *FileSystem) CreateDirectory(path string) error {
	m, rel, err := c.resolve(workspacefs.OpMkdir, path)
	if err != nil {
		return err
	}
	err = m.Provider.CreateDirectory(rel)
	c.metrics.observe(workspacefs.OpMkdir, m.Type, err)
	return rewrap(err, m)
}

// Delete removes a file or folder inside a mount. Mount roots are removed
// through the workspace registry, not here.
func (c *FileSystem) Delete(path string) error {
	m, rel, err := c.resolve(workspacefs.OpRemove, path)
	if err != nil {
		return err
	}
	if rel == pathutil.Root {
		return workspacefs.Errorf(workspacefs.OpRemove, m.Path, workspacefs.ErrInvalidPath, "cannot delete a workspace root")
	}
	err = m.Provider.Delete(rel)
	c.metrics.observe(workspacefs.OpRemove, m.Type, err)
	return rewrap(err, m)
}

// Flush flushes every connected mount that buffers writes.
// All mounts are attempted; failures are joined.
func (c *FileSystem) Flush(ctx context.Context) error {
	var errs []error
	for _, m := range c.Mounts() {
		if m.Disconnected {
			continue
		}
		err := workspacefs.Flush(ctx, m.Provider)
		c.metrics.observe(workspacefs.OpFlush, m.Type, err)
		if err != nil {
			errs = append(errs, rewrap(err, m))
		}
	}
	return errors.Join(errs...)
}

// Refresh refreshes every connected mount that supports it, one at a time
func (c *FileSystem) Refresh(ctx context.Context) error {
	var errs []error
	for _, m := range c.Mounts() {
		if m.Disconnected {
			continue
		}
		err := workspacefs.Refresh(ctx, m.Provider)
		c.metrics.observe(workspacefs.OpRefresh, m.Type, err)
		if err != nil {
			errs = append(errs, rewrap(err, m))
		}
	}
	return errors.Join(errs...)
}

// MountFor returns the mount owning path
func (c *FileSystem) MountFor(path string) (Mount, bool) {
	m, _, ok := c.Mounts().Resolve(path)
	return m, ok
}
