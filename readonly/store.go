// Package readonly builds immutable providers from flat maps of file paths to
// content, used for the library, docs, book and examples mounts.
package readonly

import (
	"maps"
	"slices"
	"strings"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/pathutil"
)

var (
	_ workspacefs.FileSystem   = (*Store)(nil)
	_ workspacefs.BinaryReader = (*Store)(nil)
)

// Store is a read-only provider. Folders are implied by file path prefixes.
type Store struct {
	name     string
	texts    map[string]string
	binaries map[string][]byte
	cwd      pathutil.WorkingDir
}

// New copies texts and binaries, keyed by relative or absolute paths, into a
// new store. A path present in both maps is served as binary. Paths naming
// the root, or a file that other paths use as a folder, are dropped.
func New(name string, texts map[string]string, binaries map[string][]byte) *Store {
	logger := util.GetLogger("readonly.New")

	s := &Store{
		name:     name,
		texts:    make(map[string]string, len(texts)),
		binaries: make(map[string][]byte, len(binaries)),
	}
	for k, v := range texts {
		s.texts[pathutil.Normalize(k)] = v
	}
	for k, v := range binaries {
		p := pathutil.Normalize(k)
		s.binaries[p] = append([]byte(nil), v...)
		delete(s.texts, p)
	}

	var dropped []string
	for _, p := range slices.Sorted(maps.Keys(s.texts)) {
		if p == pathutil.Root || s.hasDir(p) {
			dropped = append(dropped, p)
		}
	}
	for _, p := range slices.Sorted(maps.Keys(s.binaries)) {
		if p == pathutil.Root || s.hasDir(p) {
			dropped = append(dropped, p)
		}
	}
	for _, p := range dropped {
		logger.Warn().Str("store", name).Str("path", p).Msg("Dropping file that clashes with a folder")
		delete(s.texts, p)
		delete(s.binaries, p)
	}
	return s
}

// Name returns the store's display name
func (s *Store) Name() string { return s.name }

// Len returns the number of files
func (s *Store) Len() int { return len(s.texts) + len(s.binaries) }

func (s *Store) hasFile(p string) bool {
	if _, ok := s.texts[p]; ok {
		return true
	}
	_, ok := s.binaries[p]
	return ok
}

func (s *Store) hasDir(p string) bool {
	if p == pathutil.Root {
		return true
	}
	prefix := p + "/"
	for k := range s.texts {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	for k := range s.binaries {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func (s *Store) CurrentDirectory() string { return s.cwd.Get() }

func (s *Store) SetCurrentDirectory(path string) error {
	return s.cwd.Set(path, s.IsDirectory, s.Exists)
}

func (s *Store) Exists(path string) bool {
	p := pathutil.Normalize(path)
	return s.hasFile(p) || s.hasDir(p)
}

func (s *Store) IsDirectory(path string) bool {
	return s.hasDir(pathutil.Normalize(path))
}

func (s *Store) IsFile(path string) bool {
	return s.hasFile(pathutil.Normalize(path))
}

// ListDirectory derives the direct children of path from the file keys
func (s *Store) ListDirectory(path string) ([]workspacefs.Entry, error) {
	p := pathutil.Normalize(path)
	if !s.hasDir(p) {
		if s.hasFile(p) {
			return nil, workspacefs.NewError(workspacefs.OpList, p, workspacefs.ErrNotDirectory)
		}
		return nil, workspacefs.NewError(workspacefs.OpList, p, workspacefs.ErrNotFound)
	}

	seen := make(map[string]workspacefs.EntryType)
	collect := func(k string) {
		if !pathutil.IsStrictlyWithin(k, p) {
			return
		}
		rest := strings.TrimPrefix(k, p)
		rest = strings.TrimPrefix(rest, "/")
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[name] = workspacefs.FolderEntry
		} else if _, ok := seen[name]; !ok {
			seen[name] = workspacefs.FileEntry
		}
	}
	for k := range s.texts {
		collect(k)
	}
	for k := range s.binaries {
		collect(k)
	}

	entries := make([]workspacefs.Entry, 0, len(seen))
	for name, typ := range seen {
		entries = append(entries, workspacefs.Entry{Name: name, Type: typ, Path: pathutil.Join(p, name)})
	}
	workspacefs.SortEntries(entries)
	return entries, nil
}

func (s *Store) ReadFile(path string) (string, error) {
	p := pathutil.Normalize(path)
	if v, ok := s.texts[p]; ok {
		return v, nil
	}
	if v, ok := s.binaries[p]; ok {
		return string(v), nil
	}
	if s.hasDir(p) {
		return "", workspacefs.NewError(workspacefs.OpRead, p, workspacefs.ErrIsDirectory)
	}
	return "", workspacefs.NewError(workspacefs.OpRead, p, workspacefs.ErrNotFound)
}

func (s *Store) ReadBinaryFile(path string) ([]byte, error) {
	p := pathutil.Normalize(path)
	if v, ok := s.binaries[p]; ok {
		return append([]byte(nil), v...), nil
	}
	content, err := s.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

func (s *Store) IsBinaryFile(path string) bool {
	_, ok := s.binaries[pathutil.Normalize(path)]
	return ok
}

func (s *Store) WriteFile(path, _ string) error {
	return workspacefs.NewError(workspacefs.OpWrite, pathutil.Normalize(path), workspacefs.ErrReadOnly)
}

func (s *Store) CreateDirectory(path string) error {
	return workspacefs.NewError(workspacefs.OpMkdir, pathutil.Normalize(path), workspacefs.ErrReadOnly)
}

func (s *Store) Delete(path string) error {
	return workspacefs.NewError(workspacefs.OpRemove, pathutil.Normalize(path), workspacefs.ErrReadOnly)
}

// Texts returns a copy of the text content map
func (s *Store) Texts() map[string]string { return maps.Clone(s.texts) }
