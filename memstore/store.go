// Package memstore implements the in-memory hierarchical store backing virtual
// workspaces: a flat table of files keyed by absolute path plus a set of
// folder markers, with the root folder always implied.
package memstore

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/pathutil"
)

// VirtualFile is a text file held by a [Store]
type VirtualFile struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats summarizes a store's contents
type Stats struct {
	Files   int
	Folders int
	Bytes   int
}

// Store is a hierarchical in-memory file store.
// Every file's parent folder is registered, file and folder paths never collide.
type Store struct {
	mu        sync.RWMutex
	files     map[string]*VirtualFile
	folders   map[string]struct{}
	listeners []func()
	now       func() time.Time
	cwd       pathutil.WorkingDir
}

// Option configures a [Store]
type Option func(*Store)

// WithClock overrides the time source used for file timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store holding only the root folder
func New(opts ...Option) *Store {
	s := &Store{
		files:   make(map[string]*VirtualFile),
		folders: make(map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to run after every successful mutation.
// fn runs outside the store lock and may read from the store.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

func (s *Store) isFolder(p string) bool {
	if p == pathutil.Root {
		return true
	}
	_, ok := s.folders[p]
	return ok
}

func (s *Store) occupied(p string) bool {
	_, isFile := s.files[p]
	return isFile || s.isFolder(p)
}

// Create adds a new file. It fails when the path is taken or the parent
// folder is not registered.
func (s *Store) Create(path, content string) error {
	p := pathutil.Normalize(path)
	if err := s.create(p, content); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) create(p, content string) error {
	logger := util.GetLogger("Store.Create")

	if p == pathutil.Root {
		return workspacefs.NewError(workspacefs.OpCreate, p, workspacefs.ErrAlreadyExists)
	}
	name := pathutil.Leaf(p)
	if err := pathutil.ValidateName(name); err != nil {
		return workspacefs.NewError(workspacefs.OpCreate, p, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.occupied(p) {
		return workspacefs.NewError(workspacefs.OpCreate, p, workspacefs.ErrAlreadyExists)
	}
	if !s.isFolder(pathutil.Parent(p)) {
		return workspacefs.NewError(workspacefs.OpCreate, p, workspacefs.ErrParentNotFound)
	}
	now := s.now()
	s.files[p] = &VirtualFile{Name: name, Content: content, CreatedAt: now, UpdatedAt: now}
	logger.Trace().Str("path", p).Int("size", len(content)).Msg("Created file")
	return nil
}

// Read returns a file's content. Absent files report false rather than an error.
func (s *Store) Read(path string) (string, bool) {
	p := pathutil.Normalize(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[p]
	if !ok {
		return "", false
	}
	return f.Content, true
}

// File returns a copy of the file record at path
func (s *Store) File(path string) (VirtualFile, bool) {
	p := pathutil.Normalize(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[p]
	if !ok {
		return VirtualFile{}, false
	}
	return *f, true
}

// Write replaces the content of an existing file
func (s *Store) Write(path, content string) error {
	p := pathutil.Normalize(path)
	s.mu.Lock()
	f, ok := s.files[p]
	if !ok {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpWrite, p, workspacefs.ErrNotFound)
	}
	f.Content = content
	f.UpdatedAt = s.now()
	s.mu.Unlock()
	s.notify()
	return nil
}

// Remove deletes a file
func (s *Store) Remove(path string) error {
	p := pathutil.Normalize(path)
	s.mu.Lock()
	if _, ok := s.files[p]; !ok {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpRemove, p, workspacefs.ErrNotFound)
	}
	delete(s.files, p)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Rename gives a file a new name within its current folder
func (s *Store) Rename(path, newName string) error {
	p := pathutil.Normalize(path)
	if err := pathutil.ValidateName(newName); err != nil {
		return workspacefs.NewError(workspacefs.OpRename, p, err)
	}

	s.mu.Lock()
	if _, ok := s.files[p]; !ok {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpRename, p, workspacefs.ErrNotFound)
	}
	dst := pathutil.Join(pathutil.Parent(p), newName)
	if dst == p {
		s.mu.Unlock()
		return nil
	}
	if s.occupied(dst) {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpRename, dst, workspacefs.ErrAlreadyExists)
	}
	s.relocateFile(p, dst)
	s.mu.Unlock()
	s.notify()
	return nil
}

// relocateFile moves a file record. Callers hold the write lock and have
// checked dst is free.
func (s *Store) relocateFile(src, dst string) {
	f := s.files[src]
	delete(s.files, src)
	f.Name = pathutil.Leaf(dst)
	f.UpdatedAt = s.now()
	s.files[dst] = f
}

// relocateFolder re-keys src and everything beneath it under dst.
// File records keep their timestamps.
func (s *Store) relocateFolder(src, dst string) {
	// collect first, rebased keys could otherwise be visited again
	var folders, files []string
	for p := range s.folders {
		if pathutil.IsWithin(p, src) {
			folders = append(folders, p)
		}
	}
	for p := range s.files {
		if pathutil.IsStrictlyWithin(p, src) {
			files = append(files, p)
		}
	}
	for _, p := range folders {
		delete(s.folders, p)
	}
	for _, p := range folders {
		s.folders[pathutil.Rebase(p, src, dst)] = struct{}{}
	}
	for _, p := range files {
		f := s.files[p]
		delete(s.files, p)
		s.files[pathutil.Rebase(p, src, dst)] = f
	}
}

// CreateFolder registers a new folder
func (s *Store) CreateFolder(path string) error {
	p := pathutil.Normalize(path)
	if p == pathutil.Root {
		return workspacefs.NewError(workspacefs.OpMkdir, p, workspacefs.ErrAlreadyExists)
	}
	if err := pathutil.ValidateName(pathutil.Leaf(p)); err != nil {
		return workspacefs.NewError(workspacefs.OpMkdir, p, err)
	}

	s.mu.Lock()
	if s.occupied(p) {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpMkdir, p, workspacefs.ErrAlreadyExists)
	}
	if !s.isFolder(pathutil.Parent(p)) {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpMkdir, p, workspacefs.ErrParentNotFound)
	}
	s.folders[p] = struct{}{}
	s.mu.Unlock()
	s.notify()
	return nil
}

// RemoveFolder deletes a folder and everything beneath it in one step
func (s *Store) RemoveFolder(path string) error {
	logger := util.GetLogger("Store.RemoveFolder")

	p := pathutil.Normalize(path)
	if p == pathutil.Root {
		return workspacefs.Errorf(workspacefs.OpRmdir, p, workspacefs.ErrInvalidPath, "the root folder cannot be removed")
	}

	s.mu.Lock()
	if _, ok := s.folders[p]; !ok {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpRmdir, p, workspacefs.ErrNotFound)
	}
	removed := 0
	for f := range s.files {
		if pathutil.IsStrictlyWithin(f, p) {
			delete(s.files, f)
			removed++
		}
	}
	for d := range s.folders {
		if pathutil.IsWithin(d, p) {
			delete(s.folders, d)
		}
	}
	s.mu.Unlock()

	logger.Debug().Str("path", p).Int("files", removed).Msg("Removed folder")
	s.notify()
	return nil
}

// RenameFolder moves a folder, with its whole subtree, to newPath
func (s *Store) RenameFolder(oldPath, newPath string) error {
	src, dst := pathutil.Normalize(oldPath), pathutil.Normalize(newPath)
	if src == pathutil.Root {
		return workspacefs.Errorf(workspacefs.OpRename, src, workspacefs.ErrInvalidPath, "the root folder cannot be renamed")
	}
	if src == dst {
		if !s.IsDirectory(src) {
			return workspacefs.NewError(workspacefs.OpRename, src, workspacefs.ErrNotFound)
		}
		return nil
	}
	if err := pathutil.ValidateName(pathutil.Leaf(dst)); err != nil {
		return workspacefs.NewError(workspacefs.OpRename, dst, err)
	}

	s.mu.Lock()
	if err := s.checkFolderMove(workspacefs.OpRename, src, dst); err != nil {
		s.mu.Unlock()
		return err
	}
	s.relocateFolder(src, dst)
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) checkFolderMove(op, src, dst string) error {
	if _, ok := s.folders[src]; !ok {
		return workspacefs.NewError(op, src, workspacefs.ErrNotFound)
	}
	if pathutil.IsWithin(dst, src) {
		return workspacefs.NewError(op, dst, workspacefs.ErrCannotMove)
	}
	if s.occupied(dst) {
		return workspacefs.NewError(op, dst, workspacefs.ErrAlreadyExists)
	}
	if !s.isFolder(pathutil.Parent(dst)) {
		return workspacefs.NewError(op, dst, workspacefs.ErrParentNotFound)
	}
	return nil
}

// Move relocates a file or folder into targetDir, keeping its name.
// Moving an entry into the folder that already holds it is a no-op.
func (s *Store) Move(source, targetDir string) error {
	src, dir := pathutil.Normalize(source), pathutil.Normalize(targetDir)
	if src == pathutil.Root {
		return workspacefs.Errorf(workspacefs.OpMove, src, workspacefs.ErrInvalidPath, "the root folder cannot be moved")
	}

	s.mu.Lock()
	_, isFile := s.files[src]
	_, isFolder := s.folders[src]
	if !isFile && !isFolder {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpMove, src, workspacefs.ErrNotFound)
	}
	if !s.isFolder(dir) {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpMove, dir, workspacefs.ErrNotFound)
	}
	if pathutil.Parent(src) == dir {
		s.mu.Unlock()
		return nil
	}
	dst := pathutil.Join(dir, pathutil.Leaf(src))
	if isFolder {
		if err := s.checkFolderMove(workspacefs.OpMove, src, dst); err != nil {
			s.mu.Unlock()
			return err
		}
		s.relocateFolder(src, dst)
	} else {
		if s.occupied(dst) {
			s.mu.Unlock()
			return workspacefs.NewError(workspacefs.OpMove, dst, workspacefs.ErrAlreadyExists)
		}
		s.relocateFile(src, dst)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Exists reports whether path is a file or a folder
func (s *Store) Exists(path string) bool {
	p := pathutil.Normalize(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.occupied(p)
}

// IsDirectory reports whether path is a registered folder or the root
func (s *Store) IsDirectory(path string) bool {
	p := pathutil.Normalize(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isFolder(p)
}

// IsFile reports whether path is a file
func (s *Store) IsFile(path string) bool {
	p := pathutil.Normalize(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[p]
	return ok
}

// ListChildrenNames returns the sorted names directly beneath path.
// A missing folder yields an empty list.
func (s *Store) ListChildrenNames(path string) []string {
	entries := s.children(pathutil.Normalize(path))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	slices.Sort(names)
	return names
}

func (s *Store) children(p string) []workspacefs.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []workspacefs.Entry
	for d := range s.folders {
		if pathutil.Parent(d) == p {
			out = append(out, workspacefs.Entry{Name: pathutil.Leaf(d), Type: workspacefs.FolderEntry, Path: d})
		}
	}
	for f, vf := range s.files {
		if pathutil.Parent(f) == p {
			out = append(out, workspacefs.Entry{Name: vf.Name, Type: workspacefs.FileEntry, Path: f})
		}
	}
	return out
}

// SnapshotTree returns the full hierarchy as sorted tree nodes
func (s *Store) SnapshotTree() []*workspacefs.TreeNode {
	s.mu.RLock()
	nodes := make(map[string]*workspacefs.TreeNode, len(s.folders)+len(s.files))
	for d := range s.folders {
		nodes[d] = &workspacefs.TreeNode{Name: pathutil.Leaf(d), Path: d, Type: workspacefs.FolderEntry}
	}
	for f, vf := range s.files {
		nodes[f] = &workspacefs.TreeNode{Name: vf.Name, Path: f, Type: workspacefs.FileEntry}
	}
	s.mu.RUnlock()

	var roots []*workspacefs.TreeNode
	// attach in path order so output is deterministic before sorting
	for _, p := range slices.Sorted(maps.Keys(nodes)) {
		n := nodes[p]
		parent := pathutil.Parent(p)
		if parent == pathutil.Root {
			roots = append(roots, n)
			continue
		}
		if pn, ok := nodes[parent]; ok {
			pn.Children = append(pn.Children, n)
		}
	}
	workspacefs.SortTree(roots)
	return roots
}

// Stats counts files, folders and content bytes
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Files: len(s.files), Folders: len(s.folders)}
	for _, f := range s.files {
		st.Bytes += len(f.Content)
	}
	return st
}

// FilePaths returns every file path in sorted order
func (s *Store) FilePaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.files))
}

// FolderPaths returns every registered folder in sorted order, root excluded
func (s *Store) FolderPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.folders))
}
