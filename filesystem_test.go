package workspacefs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type binaryFS struct {
	*mocks.MockFileSystem
}

func (binaryFS) ReadBinaryFile(string) ([]byte, error) { return []byte{0x89, 'P', 'N', 'G'}, nil }
func (binaryFS) IsBinaryFile(string) bool { return true }

func TestCapabilities(t *testing.T) {
	t.Parallel()

	plain := &mocks.MockFileSystem{}
	assert.Equal(t, workspacefs.Capability(0), workspacefs.Capabilities(plain))

	flushing := &mocks.MockFlushingFileSystem{}
	caps := workspacefs.Capabilities(flushing)
	assert.True(t, caps.Has(workspacefs.CapFlush|workspacefs.CapRefresh))
	assert.False(t, caps.Has(workspacefs.CapRename))

	assert.True(t, workspacefs.Capabilities(binaryFS{plain}).Has(workspacefs.CapBinary))
}

func TestFlushAndRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	plain := &mocks.MockFileSystem{}
	assert.NoError(t, workspacefs.Flush(ctx, plain))
	assert.NoError(t, workspacefs.Refresh(ctx, plain))

	flushing := &mocks.MockFlushingFileSystem{}
	flushing.On("Flush", ctx).Return(errors.New("disk full"))
	flushing.On("Refresh", ctx).Return(nil)
	assert.EqualError(t, workspacefs.Flush(ctx, flushing), "disk full")
	assert.NoError(t, workspacefs.Refresh(ctx, flushing))
	flushing.AssertExpectations(t)
}

func TestReadBinary(t *testing.T) {
	t.Parallel()

	plain := &mocks.MockFileSystem{}
	plain.On("ReadFile", "/a.txt").Return("hello", nil)
	plain.On("ReadFile", "/missing").Return("", workspacefs.ErrNotFound)

	b, err := workspacefs.ReadBinary(plain, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	_, err = workspacefs.ReadBinary(plain, "/missing")
	assert.ErrorIs(t, err, workspacefs.ErrNotFound)

	b, err = workspacefs.ReadBinary(binaryFS{plain}, "/img.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, b)
}

func TestSortTree(t *testing.T) {
	t.Parallel()

	nodes := []*workspacefs.TreeNode{
		{Name: "b.txt", Path: "/b.txt", Type: workspacefs.FileEntry},
		{Name: "src", Path: "/src", Type: workspacefs.FolderEntry, Children: []*workspacefs.TreeNode{
			{Name: "z.lua", Path: "/src/z.lua", Type: workspacefs.FileEntry},
			{Name: "lib", Path: "/src/lib", Type: workspacefs.FolderEntry},
			{Name: "a.lua", Path: "/src/a.lua", Type: workspacefs.FileEntry},
		}},
		{Name: "a.txt", Path: "/a.txt", Type: workspacefs.FileEntry},
		{Name: "assets", Path: "/assets", Type: workspacefs.FolderEntry},
	}
	workspacefs.SortTree(nodes)

	assert.Equal(t, []string{
		"/assets", "/src", "/src/lib", "/src/a.lua", "/src/z.lua", "/a.txt", "/b.txt",
	}, workspacefs.Flatten(nodes))
}

func TestSortEntries(t *testing.T) {
	t.Parallel()

	entries := []workspacefs.Entry{
		{Name: "main.lua", Type: workspacefs.FileEntry},
		{Name: "lib", Type: workspacefs.FolderEntry},
		{Name: "conf.lua", Type: workspacefs.FileEntry},
	}
	workspacefs.SortEntries(entries)
	assert.Equal(t, "lib", entries[0].Name)
	assert.Equal(t, "conf.lua", entries[1].Name)
	assert.Equal(t, "main.lua", entries[2].Name)
}

func TestWalkSkipsChildren(t *testing.T) {
	t.Parallel()

	nodes := []*workspacefs.TreeNode{
		{Name: "skip", Path: "/skip", Type: workspacefs.FolderEntry, Children: []*workspacefs.TreeNode{
			{Name: "hidden", Path: "/skip/hidden", Type: workspacefs.FileEntry},
		}},
		{Name: "keep", Path: "/keep", Type: workspacefs.FolderEntry, Children: []*workspacefs.TreeNode{
			{Name: "seen", Path: "/keep/seen", Type: workspacefs.FileEntry},
		}},
	}
	var visited []string
	workspacefs.Walk(nodes, func(n *workspacefs.TreeNode) bool {
		visited = append(visited, n.Path)
		return n.Name != "skip"
	})
	assert.Equal(t, []string{"/skip", "/keep", "/keep/seen"}, visited)
}
