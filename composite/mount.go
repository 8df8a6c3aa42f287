package composite

import (
	"cmp"
	"slices"
	"strings"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/pathutil"
)

// Mount binds a provider to a path prefix in the namespace
type Mount struct {
	Path     string
	Name     string
	Type     string
	Provider workspacefs.FileSystem

	ReadOnly     bool
	Disconnected bool
}

// Table is an immutable, resolution-ordered snapshot of the mounts.
// Longer paths come first.
type Table []Mount

func (t Table) sorted() Table {
	out := slices.Clone(t)
	slices.SortFunc(out, func(a, b Mount) int {
		if c := cmp.Compare(len(b.Path), len(a.Path)); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// Resolve finds the mount owning p and p's path within it
func (t Table) Resolve(p string) (Mount, string, bool) {
	p = pathutil.Normalize(p)
	for _, m := range t {
		if p == m.Path {
			return m, pathutil.Root, true
		}
		if strings.HasPrefix(p, m.Path) && p[len(m.Path)] == '/' {
			return m, p[len(m.Path):], true
		}
	}
	return Mount{}, "", false
}

// Lookup returns the mount registered exactly at path
func (t Table) Lookup(path string) (Mount, bool) {
	path = pathutil.Normalize(path)
	for _, m := range t {
		if m.Path == path {
			return m, true
		}
	}
	return Mount{}, false
}

// ByName returns the mounts ordered by display name
func (t Table) ByName() []Mount {
	out := slices.Clone([]Mount(t))
	slices.SortFunc(out, func(a, b Mount) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// global maps a provider-relative path back into the namespace
func (m Mount) global(rel string) string {
	return pathutil.Join(m.Path, rel)
}

func validMountPath(path string) bool {
	return path != pathutil.Root && pathutil.Depth(path) == 1
}

// conflicts reports whether path collides with, or nests under/over, an existing mount
func (t Table) conflicts(path string, except string) bool {
	for _, m := range t {
		if m.Path == except {
			continue
		}
		if pathutil.IsWithin(path, m.Path) || pathutil.IsWithin(m.Path, path) {
			return true
		}
	}
	return false
}
