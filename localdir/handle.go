package localdir

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/brettbedarf/workspacefs/pathutil"
	"github.com/charlievieth/fastwalk"
	"github.com/spf13/afero"
)

// WalkFunc receives each entry below a handle's root as an absolute,
// '/'-separated path relative to that root
type WalkFunc func(path string, isDir bool) error

// Handle is a user-granted directory. The provider reads and writes through
// FS, whose root is the granted directory.
type Handle interface {
	Name() string
	FS() afero.Fs
	// Walk visits every entry below the root, excluding the root itself.
	// fn is never called concurrently.
	Walk(ctx context.Context, fn WalkFunc) error
}

type osHandle struct {
	name string
	root string
	fs   afero.Fs
}

// NewOSHandle grants access to a directory on the host filesystem
func NewOSHandle(root string) (Handle, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &osHandle{
		name: filepath.Base(abs),
		root: abs,
		fs:   afero.NewBasePathFs(afero.NewOsFs(), abs),
	}, nil
}

func (h *osHandle) Name() string { return h.name }

func (h *osHandle) FS() afero.Fs { return h.fs }

// Root returns the host path of the granted directory
func (h *osHandle) Root() string { return h.root }

func (h *osHandle) Walk(ctx context.Context, fn WalkFunc) error {
	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, h.root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(h.root, p)
		if err != nil || rel == "." {
			return err
		}
		// only regular files and directories are mirrored
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		return fn(pathutil.Normalize(filepath.ToSlash(rel)), d.IsDir())
	})
}

type memHandle struct {
	name string
	fs   afero.Fs
}

// NewMemHandle wraps an afero filesystem as a handle; its root is "/"
func NewMemHandle(name string, fsys afero.Fs) Handle {
	return &memHandle{name: name, fs: fsys}
}

func (h *memHandle) Name() string { return h.name }

func (h *memHandle) FS() afero.Fs { return h.fs }

func (h *memHandle) Walk(ctx context.Context, fn WalkFunc) error {
	return afero.Walk(h.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return err
		}
		p = pathutil.Normalize(filepath.ToSlash(p))
		if p == pathutil.Root {
			return nil
		}
		return fn(p, info.IsDir())
	})
}

// Permission is the answer to a request for access to a handle
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)
