package composite

import (
	"errors"
	"fmt"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/pathutil"
)

// endpoint is a namespace path resolved to its mount
type endpoint struct {
	mount Mount
	rel   string
	path  string
}

func (c *FileSystem) endpoint(op, path string) (endpoint, error) {
	p := pathutil.Normalize(path)
	m, rel, err := c.resolve(op, p)
	if err != nil {
		return endpoint{}, err
	}
	return endpoint{mount: m, rel: rel, path: p}, nil
}

// checkConnected runs before any existence check, since a provider that lost
// its backing store answers those with false
func checkConnected(op string, eps ...endpoint) error {
	for _, ep := range eps {
		if ep.mount.Disconnected || !workspacefs.Connected(ep.mount.Provider) {
			return workspacefs.NewError(op, ep.path, workspacefs.ErrDisconnected)
		}
	}
	return nil
}

// Move relocates a file or folder into targetDir, keeping its name.
// Within one provider with a native rename the move is atomic; otherwise the
// tree is copied and the source deleted afterwards.
func (c *FileSystem) Move(source, targetDir string) error {
	err := c.move(source, targetDir)
	if err != nil {
		logger := util.GetLogger("Composite.Move")
		logger.Debug().Err(err).Str("source", source).Str("target", targetDir).Msg("Move failed")
	}
	return err
}

func (c *FileSystem) move(source, targetDir string) error {
	src, err := c.endpoint(workspacefs.OpMove, source)
	if err != nil {
		return err
	}
	dir, err := c.endpoint(workspacefs.OpMove, targetDir)
	if err != nil {
		return err
	}
	if src.rel == pathutil.Root {
		return workspacefs.Errorf(workspacefs.OpMove, src.path, workspacefs.ErrInvalidPath, "cannot move a workspace root")
	}
	if err := checkConnected(workspacefs.OpMove, src, dir); err != nil {
		return err
	}
	if !src.mount.Provider.Exists(src.rel) {
		return workspacefs.NewError(workspacefs.OpMove, src.path, workspacefs.ErrNotFound)
	}
	if !dir.mount.Provider.IsDirectory(dir.rel) {
		return workspacefs.NewError(workspacefs.OpMove, dir.path, workspacefs.ErrNotFound)
	}
	if pathutil.Parent(src.path) == dir.path {
		return nil
	}
	if pathutil.IsWithin(dir.path, src.path) {
		return workspacefs.NewError(workspacefs.OpMove, dir.path, workspacefs.ErrCannotMove)
	}
	dst, err := c.endpoint(workspacefs.OpMove, pathutil.Join(dir.path, pathutil.Leaf(src.path)))
	if err != nil {
		return err
	}
	return c.relocate(workspacefs.OpMove, src, dst)
}

// Rename gives a file or folder a new name within its folder
func (c *FileSystem) Rename(path, newName string) error {
	src, err := c.endpoint(workspacefs.OpRename, path)
	if err != nil {
		return err
	}
	if err := pathutil.ValidateName(newName); err != nil {
		return workspacefs.NewError(workspacefs.OpRename, src.path, err)
	}
	if src.rel == pathutil.Root {
		return workspacefs.Errorf(workspacefs.OpRename, src.path, workspacefs.ErrInvalidPath, "workspaces are renamed through the registry")
	}
	if err := checkConnected(workspacefs.OpRename, src); err != nil {
		return err
	}
	if !src.mount.Provider.Exists(src.rel) {
		return workspacefs.NewError(workspacefs.OpRename, src.path, workspacefs.ErrNotFound)
	}
	dstPath := pathutil.Join(pathutil.Parent(src.path), newName)
	if dstPath == src.path {
		return nil
	}
	dst := endpoint{mount: src.mount, rel: pathutil.Join(pathutil.Parent(src.rel), newName), path: dstPath}
	return c.relocate(workspacefs.OpRename, src, dst)
}

// Copy duplicates a file or folder tree at dst, which must not exist yet
func (c *FileSystem) Copy(source, dest string) error {
	src, err := c.endpoint(workspacefs.OpCopy, source)
	if err != nil {
		return err
	}
	dst, err := c.endpoint(workspacefs.OpCopy, dest)
	if err != nil {
		return err
	}
	if dst.rel == pathutil.Root {
		return workspacefs.NewError(workspacefs.OpCopy, dst.path, workspacefs.ErrAlreadyExists)
	}
	if err := checkConnected(workspacefs.OpCopy, src, dst); err != nil {
		return err
	}
	if !src.mount.Provider.Exists(src.rel) {
		return workspacefs.NewError(workspacefs.OpCopy, src.path, workspacefs.ErrNotFound)
	}
	if pathutil.IsWithin(dst.path, src.path) {
		return workspacefs.NewError(workspacefs.OpCopy, dst.path, workspacefs.ErrCannotMove)
	}
	if err := c.checkDestination(workspacefs.OpCopy, dst); err != nil {
		return err
	}
	err = c.copyTree(src, dst)
	c.metrics.observe(workspacefs.OpCopy, dst.mount.Type, err)
	if err != nil {
		c.discardPartialCopy(dst)
	}
	return err
}

func (c *FileSystem) checkDestination(op string, dst endpoint) error {
	p := dst.mount.Provider
	if p.Exists(dst.rel) {
		return workspacefs.NewError(op, dst.path, workspacefs.ErrAlreadyExists)
	}
	if !p.IsDirectory(pathutil.Parent(dst.rel)) {
		return workspacefs.NewError(op, dst.path, workspacefs.ErrParentNotFound)
	}
	return nil
}

// relocate moves src to dst, natively when both sit on one provider with a
// native rename, by copy-then-delete otherwise
func (c *FileSystem) relocate(op string, src, dst endpoint) error {
	if err := c.checkDestination(op, dst); err != nil {
		return err
	}

	if src.mount.Path == dst.mount.Path {
		if r, ok := src.mount.Provider.(workspacefs.Renamer); ok {
			err := r.RenamePath(src.rel, dst.rel)
			c.metrics.observe(op, src.mount.Type, err)
			return rewrap(err, src.mount)
		}
	}

	logger := util.GetLogger("Composite.relocate")
	logger.Debug().Str("from", src.path).Str("to", dst.path).Msg("Emulating move by copy and delete")

	if err := c.copyTree(src, dst); err != nil {
		c.metrics.observe(op, dst.mount.Type, err)
		c.discardPartialCopy(dst)
		return err
	}
	if err := src.mount.Provider.Delete(src.rel); err != nil {
		err = &workspacefs.Error{Op: op, Path: src.path, Err: fmt.Errorf("%w: %w", workspacefs.ErrPartialMove, rewrap(err, src.mount))}
		c.metrics.observe(op, src.mount.Type, err)
		logger.Error().Err(err).Str("from", src.path).Str("to", dst.path).Msg("Source left in place after copy")
		return err
	}
	c.metrics.observe(op, dst.mount.Type, nil)
	return nil
}

// discardPartialCopy removes what a failed copy managed to write. The source
// is untouched at this point, so failure here only leaves stray output.
func (c *FileSystem) discardPartialCopy(dst endpoint) {
	if dst.mount.Disconnected || !workspacefs.Connected(dst.mount.Provider) || !dst.mount.Provider.Exists(dst.rel) {
		return
	}
	if err := dst.mount.Provider.Delete(dst.rel); err != nil {
		logger := util.GetLogger("Composite.relocate")
		logger.Warn().Err(err).Str("path", dst.path).Msg("Failed to clean up partial copy")
	}
}

// copyTree writes src at dst, folders before their children
func (c *FileSystem) copyTree(src, dst endpoint) error {
	sp, dp := src.mount.Provider, dst.mount.Provider

	if !sp.IsDirectory(src.rel) {
		content, err := sp.ReadFile(src.rel)
		if err != nil {
			return rewrap(err, src.mount)
		}
		return rewrap(dp.WriteFile(dst.rel, content), dst.mount)
	}

	if err := dp.CreateDirectory(dst.rel); err != nil {
		return rewrap(err, dst.mount)
	}
	children, err := sp.ListDirectory(src.rel)
	if err != nil {
		return rewrap(err, src.mount)
	}
	for _, child := range children {
		next := func(ep endpoint) endpoint {
			rel := pathutil.Join(ep.rel, child.Name)
			return endpoint{mount: ep.mount, rel: rel, path: ep.mount.global(rel)}
		}
		if err := c.copyTree(next(src), next(dst)); err != nil {
			return err
		}
	}
	return nil
}

// IsPartialMove reports whether err came from a move whose copy succeeded
// but whose source could not be removed
func IsPartialMove(err error) bool {
	return errors.Is(err, workspacefs.ErrPartialMove)
}
