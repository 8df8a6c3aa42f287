// Package pathutil holds the pure path helpers every provider uses to keep
// paths in one canonical shape: absolute, '/'-separated, no trailing slash.
package pathutil

import (
	"path"
	"strings"
	"sync"

	"github.com/brettbedarf/workspacefs"
)

// Root is the canonical root path
const Root = "/"

// ForbiddenChars may not appear in a file or folder name
const ForbiddenChars = `\:*?"<>|`

// ValidateName checks a single path segment.
// Names must be non-blank and free of [ForbiddenChars] and '/'.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return workspacefs.Errorf(workspacefs.OpValidate, name, workspacefs.ErrInvalidName, "name is empty")
	}
	if i := strings.IndexAny(name, ForbiddenChars+"/"); i >= 0 {
		return workspacefs.Errorf(workspacefs.OpValidate, name, workspacefs.ErrInvalidName,
			"name contains forbidden character %q", name[i])
	}
	if name == "." || name == ".." {
		return workspacefs.Errorf(workspacefs.OpValidate, name, workspacefs.ErrInvalidName, "reserved name")
	}
	return nil
}

// Normalize returns the canonical form of p. Relative input is treated as
// rooted ("a/b" -> "/a/b"), duplicate separators collapse and "." / ".."
// segments are resolved.
func Normalize(p string) string {
	return path.Clean(Root + p)
}

// IsRoot reports whether p normalizes to the root
func IsRoot(p string) bool { return Normalize(p) == Root }

// Parent returns the parent of p; the parent of a top-level entry and of the
// root itself is the root.
func Parent(p string) string {
	return path.Dir(Normalize(p))
}

// Leaf returns the final segment of p, or "" for the root
func Leaf(p string) string {
	p = Normalize(p)
	if p == Root {
		return ""
	}
	return path.Base(p)
}

// Join appends name to dir and normalizes the result
func Join(dir string, elem ...string) string {
	return Normalize(path.Join(append([]string{Normalize(dir)}, elem...)...))
}

// Segments splits p into its non-empty segments
func Segments(p string) []string {
	p = Normalize(p)
	if p == Root {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// IsWithin reports whether p equals ancestor or lies beneath it
func IsWithin(p, ancestor string) bool {
	p, ancestor = Normalize(p), Normalize(ancestor)
	if ancestor == Root || p == ancestor {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// IsStrictlyWithin reports whether p lies beneath ancestor, excluding ancestor itself
func IsStrictlyWithin(p, ancestor string) bool {
	return IsWithin(p, ancestor) && Normalize(p) != Normalize(ancestor)
}

// Rebase moves p from under oldPrefix to under newPrefix.
// p must satisfy IsWithin(p, oldPrefix).
func Rebase(p, oldPrefix, newPrefix string) string {
	p, oldPrefix = Normalize(p), Normalize(oldPrefix)
	if p == oldPrefix {
		return Normalize(newPrefix)
	}
	rest := p
	if oldPrefix != Root {
		rest = p[len(oldPrefix):]
	}
	return Join(newPrefix, rest)
}

// Depth is the number of segments in p
func Depth(p string) int { return len(Segments(p)) }

// WorkingDir tracks a provider's current directory. The zero value is at the root.
type WorkingDir struct {
	mu   sync.Mutex
	path string
}

// Get returns the current directory
func (w *WorkingDir) Get() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.path == "" {
		return Root
	}
	return w.path
}

// Set changes the current directory after checking it with isDir
func (w *WorkingDir) Set(p string, isDir func(string) bool, exists func(string) bool) error {
	p = Normalize(p)
	if !isDir(p) {
		if exists(p) {
			return workspacefs.NewError(workspacefs.OpChdir, p, workspacefs.ErrNotDirectory)
		}
		return workspacefs.NewError(workspacefs.OpChdir, p, workspacefs.ErrNotFound)
	}
	w.mu.Lock()
	w.path = p
	w.mu.Unlock()
	return nil
}
