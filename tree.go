package workspacefs

import (
	"slices"
	"strings"
)

// TreeNode is one node of a namespace snapshot
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     EntryType   `json:"type"`
	Children []*TreeNode `json:"children,omitempty"`

	// mount flags, only set on the nodes standing for a workspace root
	IsWorkspace    bool `json:"isWorkspace,omitempty"`
	IsDisconnected bool `json:"isDisconnected,omitempty"`
	IsReadOnly     bool `json:"isReadOnly,omitempty"`
}

// IsDir reports whether the node is a folder
func (n *TreeNode) IsDir() bool { return n.Type == FolderEntry }

// SortTree orders siblings folders first, then by name, at every level
func SortTree(nodes []*TreeNode) {
	slices.SortFunc(nodes, compareNodes)
	for _, n := range nodes {
		if len(n.Children) > 0 {
			SortTree(n.Children)
		}
	}
}

func compareNodes(a, b *TreeNode) int {
	if a.IsDir() != b.IsDir() {
		if a.IsDir() {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

// SortEntries orders a listing the same way as [SortTree]
func SortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// Walk visits every node depth-first, parents before children.
// Returning false from fn skips the node's children.
func Walk(nodes []*TreeNode, fn func(*TreeNode) bool) {
	for _, n := range nodes {
		if fn(n) && len(n.Children) > 0 {
			Walk(n.Children, fn)
		}
	}
}

// Flatten returns every path in the forest, parents before children
func Flatten(nodes []*TreeNode) []string {
	var out []string
	Walk(nodes, func(n *TreeNode) bool {
		out = append(out, n.Path)
		return true
	})
	return out
}
