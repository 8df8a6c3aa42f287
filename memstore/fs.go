package memstore

import (
	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/pathutil"
)

var (
	_ workspacefs.FileSystem = (*Store)(nil)
	_ workspacefs.Renamer    = (*Store)(nil)
)

// CurrentDirectory returns the working directory
func (s *Store) CurrentDirectory() string { return s.cwd.Get() }

// SetCurrentDirectory changes the working directory to an existing folder
func (s *Store) SetCurrentDirectory(path string) error {
	return s.cwd.Set(path, s.IsDirectory, s.Exists)
}

// ListDirectory lists the direct children of a folder, folders first
func (s *Store) ListDirectory(path string) ([]workspacefs.Entry, error) {
	p := pathutil.Normalize(path)
	if !s.IsDirectory(p) {
		if s.IsFile(p) {
			return nil, workspacefs.NewError(workspacefs.OpList, p, workspacefs.ErrNotDirectory)
		}
		return nil, workspacefs.NewError(workspacefs.OpList, p, workspacefs.ErrNotFound)
	}
	entries := s.children(p)
	workspacefs.SortEntries(entries)
	return entries, nil
}

func (s *Store) ReadFile(path string) (string, error) {
	p := pathutil.Normalize(path)
	content, ok := s.Read(p)
	if ok {
		return content, nil
	}
	if s.IsDirectory(p) {
		return "", workspacefs.NewError(workspacefs.OpRead, p, workspacefs.ErrIsDirectory)
	}
	return "", workspacefs.NewError(workspacefs.OpRead, p, workspacefs.ErrNotFound)
}

// WriteFile overwrites an existing file or creates a new one
func (s *Store) WriteFile(path, content string) error {
	p := pathutil.Normalize(path)
	if s.IsDirectory(p) {
		return workspacefs.NewError(workspacefs.OpWrite, p, workspacefs.ErrIsDirectory)
	}
	if s.IsFile(p) {
		return s.Write(p, content)
	}
	return s.Create(p, content)
}

func (s *Store) CreateDirectory(path string) error {
	return s.CreateFolder(path)
}

// Delete removes a file or a folder subtree
func (s *Store) Delete(path string) error {
	p := pathutil.Normalize(path)
	if s.IsDirectory(p) {
		return s.RemoveFolder(p)
	}
	return s.Remove(p)
}

// RenamePath moves a file or folder from oldPath to newPath in one step
func (s *Store) RenamePath(oldPath, newPath string) error {
	src, dst := pathutil.Normalize(oldPath), pathutil.Normalize(newPath)
	if s.IsDirectory(src) {
		return s.RenameFolder(src, dst)
	}
	if !s.IsFile(src) {
		return workspacefs.NewError(workspacefs.OpRename, src, workspacefs.ErrNotFound)
	}
	if pathutil.Parent(src) == pathutil.Parent(dst) {
		return s.Rename(src, pathutil.Leaf(dst))
	}
	return s.renameFileAcross(src, dst)
}

func (s *Store) renameFileAcross(src, dst string) error {
	if err := pathutil.ValidateName(pathutil.Leaf(dst)); err != nil {
		return workspacefs.NewError(workspacefs.OpRename, dst, err)
	}
	s.mu.Lock()
	if _, ok := s.files[src]; !ok {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpRename, src, workspacefs.ErrNotFound)
	}
	if s.occupied(dst) {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpRename, dst, workspacefs.ErrAlreadyExists)
	}
	if !s.isFolder(pathutil.Parent(dst)) {
		s.mu.Unlock()
		return workspacefs.NewError(workspacefs.OpRename, dst, workspacefs.ErrParentNotFound)
	}
	s.relocateFile(src, dst)
	s.mu.Unlock()
	s.notify()
	return nil
}
