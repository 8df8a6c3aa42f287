package composite

import (
	"github.com/bmatcuk/doublestar/v4"
	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/pathutil"
)

// Tree snapshots the whole namespace. Each mount is a root node carrying its
// flags; disconnected mounts appear without children.
func (c *FileSystem) Tree() []*workspacefs.TreeNode {
	logger := util.GetLogger("Composite.Tree")

	var roots []*workspacefs.TreeNode
	for _, m := range c.Mounts().ByName() {
		node := &workspacefs.TreeNode{
			Name:           m.Name,
			Path:           m.Path,
			Type:           workspacefs.FolderEntry,
			IsWorkspace:    true,
			IsDisconnected: m.Disconnected,
			IsReadOnly:     m.ReadOnly,
		}
		if !m.Disconnected {
			children, err := subtree(m, pathutil.Root)
			if err != nil {
				logger.Warn().Err(err).Str("mount", m.Path).Msg("Failed to list mount")
			}
			node.Children = children
		}
		roots = append(roots, node)
	}
	for _, r := range roots {
		workspacefs.SortTree(r.Children)
	}
	return roots
}

// MountTree snapshots a single mount
func (c *FileSystem) MountTree(mountPath string) ([]*workspacefs.TreeNode, error) {
	m, ok := c.Mounts().Lookup(mountPath)
	if !ok {
		return nil, workspacefs.NewError(workspacefs.OpList, pathutil.Normalize(mountPath), workspacefs.ErrNotFound)
	}
	if m.Disconnected {
		return nil, workspacefs.NewError(workspacefs.OpList, m.Path, workspacefs.ErrDisconnected)
	}
	nodes, err := subtree(m, pathutil.Root)
	if err != nil {
		return nil, err
	}
	workspacefs.SortTree(nodes)
	return nodes, nil
}

func subtree(m Mount, rel string) ([]*workspacefs.TreeNode, error) {
	entries, err := m.Provider.ListDirectory(rel)
	if err != nil {
		return nil, rewrap(err, m)
	}
	nodes := make([]*workspacefs.TreeNode, 0, len(entries))
	for _, e := range entries {
		n := &workspacefs.TreeNode{Name: e.Name, Path: m.global(e.Path), Type: e.Type}
		if e.IsDir() {
			if n.Children, err = subtree(m, e.Path); err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Glob returns every namespace path matching pattern, e.g. "/home/**/*.lua".
// Disconnected mounts are skipped.
func (c *FileSystem) Glob(pattern string) ([]string, error) {
	pattern = pathutil.Normalize(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, workspacefs.Errorf(workspacefs.OpList, pattern, workspacefs.ErrInvalidPath, "bad glob pattern")
	}

	var matches []string
	workspacefs.Walk(c.Tree(), func(n *workspacefs.TreeNode) bool {
		if ok, _ := doublestar.Match(pattern, n.Path); ok {
			matches = append(matches, n.Path)
		}
		return true
	})
	return matches, nil
}
