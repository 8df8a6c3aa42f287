package memstore

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/brettbedarf/workspacefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns a clock advancing one second per call
func stepClock() func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithClock(stepClock()))
}

func TestCreateThenRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		content string
	}{
		{"top level", "/main.lua", "print('hi')"},
		{"empty content", "/empty.txt", ""},
		{"unnormalized", "notes.md/", "# notes"},
		{"unicode", "/données.txt", "é"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestStore(t)
			require.NoError(t, s.Create(tt.path, tt.content))

			got, ok := s.Read(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.content, got)
		})
	}
}

func TestCreateErrors(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/src"))
	require.NoError(t, s.Create("/src/a.lua", "x"))

	t.Run("file already exists", func(t *testing.T) {
		assert.ErrorIs(t, s.Create("/src/a.lua", "y"), workspacefs.ErrAlreadyExists)
		got, _ := s.Read("/src/a.lua")
		assert.Equal(t, "x", got)
	})
	t.Run("folder occupies path", func(t *testing.T) {
		assert.ErrorIs(t, s.Create("/src", ""), workspacefs.ErrAlreadyExists)
	})
	t.Run("root", func(t *testing.T) {
		assert.ErrorIs(t, s.Create("/", ""), workspacefs.ErrAlreadyExists)
	})
	t.Run("missing parent", func(t *testing.T) {
		assert.ErrorIs(t, s.Create("/nope/a.lua", ""), workspacefs.ErrParentNotFound)
	})
	t.Run("file as parent", func(t *testing.T) {
		assert.ErrorIs(t, s.Create("/src/a.lua/b", ""), workspacefs.ErrParentNotFound)
	})
	t.Run("invalid name", func(t *testing.T) {
		err := s.Create("/src/a:b.lua", "")
		assert.ErrorIs(t, err, workspacefs.ErrInvalidName)
		assert.Equal(t, workspacefs.KindInvalidName, workspacefs.KindOf(err))
	})
}

func TestCreateTwiceKeepsSingleFile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Create("/a.lua", ""))
	err := s.Create("/a.lua", "")
	require.Error(t, err)
	assert.Equal(t, workspacefs.KindAlreadyExists, workspacefs.KindOf(err))
	assert.Equal(t, []string{"a.lua"}, s.ListChildrenNames("/"))
	assert.Equal(t, 1, s.Stats().Files)
}

func TestReadMissingIsNotAnError(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	got, ok := s.Read("/missing")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestWrite(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Create("/a.txt", "one"))
	before, _ := s.File("/a.txt")

	require.NoError(t, s.Write("/a.txt", "two"))
	after, _ := s.File("/a.txt")
	assert.Equal(t, "two", after.Content)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	assert.ErrorIs(t, s.Write("/b.txt", "x"), workspacefs.ErrNotFound)
	assert.False(t, s.Exists("/b.txt"))
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Create("/a.txt", "x"))
	require.NoError(t, s.Remove("/a.txt"))
	assert.False(t, s.Exists("/a.txt"))

	err := s.Remove("/a.txt")
	assert.ErrorIs(t, err, workspacefs.ErrNotFound)
}

func TestRename(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/src"))
	require.NoError(t, s.Create("/src/old.lua", "body"))
	require.NoError(t, s.Create("/src/taken.lua", ""))
	before, _ := s.File("/src/old.lua")

	require.NoError(t, s.Rename("/src/old.lua", "new.lua"))
	assert.False(t, s.Exists("/src/old.lua"))
	assert.True(t, s.Exists("/src/new.lua"))

	after, ok := s.File("/src/new.lua")
	require.True(t, ok)
	assert.Equal(t, "body", after.Content)
	assert.Equal(t, "new.lua", after.Name)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	assert.ErrorIs(t, s.Rename("/src/new.lua", "taken.lua"), workspacefs.ErrAlreadyExists)
	assert.ErrorIs(t, s.Rename("/src/missing.lua", "x.lua"), workspacefs.ErrNotFound)
	assert.ErrorIs(t, s.Rename("/src/new.lua", "bad|name"), workspacefs.ErrInvalidName)
	assert.ErrorIs(t, s.Rename("/src/new.lua", ""), workspacefs.ErrInvalidName)
	assert.NoError(t, s.Rename("/src/new.lua", "new.lua"))
}

func TestFolders(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/a"))
	require.NoError(t, s.CreateFolder("/a/b"))
	require.NoError(t, s.Create("/a/b/c.txt", "c"))
	require.NoError(t, s.Create("/a/d.txt", "d"))
	require.NoError(t, s.Create("/keep.txt", "k"))

	assert.ErrorIs(t, s.CreateFolder("/a"), workspacefs.ErrAlreadyExists)
	assert.ErrorIs(t, s.CreateFolder("/keep.txt"), workspacefs.ErrAlreadyExists)
	assert.ErrorIs(t, s.CreateFolder("/x/y"), workspacefs.ErrParentNotFound)
	assert.ErrorIs(t, s.CreateFolder("/a/b*"), workspacefs.ErrInvalidName)

	assert.True(t, s.IsDirectory("/a/b"))
	assert.True(t, s.IsDirectory("/"))
	assert.False(t, s.IsDirectory("/a/d.txt"))

	require.NoError(t, s.RemoveFolder("/a"))
	for _, p := range []string{"/a", "/a/b", "/a/b/c.txt", "/a/d.txt"} {
		assert.False(t, s.Exists(p), p)
	}
	assert.True(t, s.Exists("/keep.txt"))
	assert.ErrorIs(t, s.RemoveFolder("/a"), workspacefs.ErrNotFound)
	assert.ErrorIs(t, s.RemoveFolder("/"), workspacefs.ErrInvalidPath)
}

func TestRenameFolderScenario(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/utils"))
	require.NoError(t, s.Create("/utils/a.lua", "x"))
	require.NoError(t, s.RenameFolder("/utils", "/lib"))

	assert.False(t, s.Exists("/utils"))
	assert.True(t, s.Exists("/lib/a.lua"))
	got, ok := s.Read("/lib/a.lua")
	require.True(t, ok)
	assert.Equal(t, "x", got)
}

func TestRenameFolderPreservesDescendants(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/p"))
	require.NoError(t, s.CreateFolder("/p/q"))
	require.NoError(t, s.CreateFolder("/p/q/r"))
	require.NoError(t, s.Create("/p/top.txt", "1"))
	require.NoError(t, s.Create("/p/q/mid.txt", "2"))
	require.NoError(t, s.Create("/p/q/r/deep.txt", "3"))
	require.NoError(t, s.Create("/pq.txt", "sibling with shared prefix"))
	deep, _ := s.File("/p/q/r/deep.txt")

	require.NoError(t, s.RenameFolder("/p", "/z"))

	want := map[string]string{"/z/top.txt": "1", "/z/q/mid.txt": "2", "/z/q/r/deep.txt": "3"}
	for p, content := range want {
		got, ok := s.Read(p)
		require.True(t, ok, p)
		assert.Equal(t, content, got)
	}
	for _, p := range []string{"/p", "/p/q", "/p/q/r", "/p/top.txt", "/p/q/mid.txt", "/p/q/r/deep.txt"} {
		assert.False(t, s.Exists(p), p)
	}
	assert.True(t, s.IsDirectory("/z/q/r"))
	assert.True(t, s.Exists("/pq.txt"))

	moved, _ := s.File("/z/q/r/deep.txt")
	assert.Equal(t, deep, moved)
}

func TestRenameFolderErrors(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/a"))
	require.NoError(t, s.CreateFolder("/a/child"))
	require.NoError(t, s.CreateFolder("/b"))
	require.NoError(t, s.Create("/file.txt", ""))

	assert.ErrorIs(t, s.RenameFolder("/a", "/b"), workspacefs.ErrAlreadyExists)
	assert.ErrorIs(t, s.RenameFolder("/a", "/file.txt"), workspacefs.ErrAlreadyExists)
	assert.ErrorIs(t, s.RenameFolder("/missing", "/c"), workspacefs.ErrNotFound)
	assert.ErrorIs(t, s.RenameFolder("/a", "/a/child/inner"), workspacefs.ErrCannotMove)
	assert.ErrorIs(t, s.RenameFolder("/a", "/nope/a"), workspacefs.ErrParentNotFound)
	assert.ErrorIs(t, s.RenameFolder("/", "/c"), workspacefs.ErrInvalidPath)
	assert.True(t, s.IsDirectory("/a/child"))
}

func TestMoveToOwnParentIsNoop(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/dir"))
	require.NoError(t, s.Create("/dir/f.txt", "content"))
	before := s.State()

	require.NoError(t, s.Move("/dir/f.txt", "/dir"))
	require.NoError(t, s.Move("/dir", "/"))
	assert.Equal(t, before, s.State())
}

func TestMove(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/src"))
	require.NoError(t, s.CreateFolder("/src/inner"))
	require.NoError(t, s.CreateFolder("/dst"))
	require.NoError(t, s.Create("/src/inner/x.txt", "x"))
	require.NoError(t, s.Create("/f.txt", "f"))

	require.NoError(t, s.Move("/f.txt", "/dst"))
	assert.True(t, s.IsFile("/dst/f.txt"))
	assert.False(t, s.Exists("/f.txt"))

	require.NoError(t, s.Move("/src/inner", "/dst"))
	got, ok := s.Read("/dst/inner/x.txt")
	require.True(t, ok)
	assert.Equal(t, "x", got)
	assert.False(t, s.Exists("/src/inner"))
}

func TestMoveErrors(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/a"))
	require.NoError(t, s.CreateFolder("/a/b"))
	require.NoError(t, s.CreateFolder("/c"))
	require.NoError(t, s.CreateFolder("/c/b"))
	require.NoError(t, s.Create("/a/b/x.txt", "x"))
	before := s.State()

	assert.ErrorIs(t, s.Move("/missing", "/c"), workspacefs.ErrNotFound)
	assert.ErrorIs(t, s.Move("/a", "/missing"), workspacefs.ErrNotFound)
	assert.ErrorIs(t, s.Move("/a/b", "/c"), workspacefs.ErrAlreadyExists)
	assert.ErrorIs(t, s.Move("/a", "/a"), workspacefs.ErrCannotMove)
	assert.ErrorIs(t, s.Move("/a", "/a/b"), workspacefs.ErrCannotMove)
	assert.Equal(t, workspacefs.KindCannotMove, workspacefs.KindOf(s.Move("/a", "/a/b")))

	assert.Equal(t, before, s.State())
}

func TestListChildrenNames(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/z"))
	require.NoError(t, s.CreateFolder("/z/nested"))
	require.NoError(t, s.Create("/b.txt", ""))
	require.NoError(t, s.Create("/a.txt", ""))

	assert.Equal(t, []string{"a.txt", "b.txt", "z"}, s.ListChildrenNames("/"))
	assert.Equal(t, []string{"nested"}, s.ListChildrenNames("/z"))
	assert.Empty(t, s.ListChildrenNames("/z/nested"))
	assert.Empty(t, s.ListChildrenNames("/missing"))
}

func TestSnapshotTree(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Create("/b.txt", ""))
	require.NoError(t, s.CreateFolder("/z"))
	require.NoError(t, s.CreateFolder("/a"))
	require.NoError(t, s.Create("/a/y.txt", ""))
	require.NoError(t, s.CreateFolder("/a/x"))

	tree := s.SnapshotTree()
	require.Len(t, tree, 3)
	assert.Equal(t, "a", tree[0].Name)
	assert.Equal(t, "z", tree[1].Name)
	assert.Equal(t, "b.txt", tree[2].Name)
	assert.Equal(t, workspacefs.FileEntry, tree[2].Type)

	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "/a/x", tree[0].Children[0].Path)
	assert.Equal(t, workspacefs.FolderEntry, tree[0].Children[0].Type)
	assert.Equal(t, "/a/y.txt", tree[0].Children[1].Path)
}

func TestOnChange(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	var calls atomic.Int32
	s.OnChange(func() { calls.Add(1) })

	require.NoError(t, s.CreateFolder("/d"))
	require.NoError(t, s.Create("/d/f", ""))
	require.NoError(t, s.Write("/d/f", "x"))
	assert.Error(t, s.Write("/nope", "x"))
	_, _ = s.Read("/d/f")
	assert.Equal(t, int32(3), calls.Load())
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.CreateFolder("/src"))
	require.NoError(t, s.CreateFolder("/src/lib"))
	require.NoError(t, s.CreateFolder("/empty"))
	require.NoError(t, s.Create("/src/main.lua", "main"))
	require.NoError(t, s.Create("/src/lib/util.lua", "util"))
	require.NoError(t, s.Create("/readme.md", "# hi"))

	fresh := New()
	fresh.LoadState(s.State())

	assert.Equal(t, s.SnapshotTree(), fresh.SnapshotTree())
	assert.Equal(t, s.State(), fresh.State())
	for _, p := range s.FilePaths() {
		want, _ := s.Read(p)
		got, ok := fresh.Read(p)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestLoadStateRepairsAncestors(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.LoadState(State{
		Files: map[string]*VirtualFile{
			"a/b/c.txt": {Content: "c"},
			"/x":        {Content: "clashes with folder"},
		},
		Folders: []string{"/x/y"},
	})

	assert.True(t, s.IsDirectory("/a"))
	assert.True(t, s.IsDirectory("/a/b"))
	assert.True(t, s.IsDirectory("/x"))
	assert.False(t, s.IsFile("/x"))

	f, ok := s.File("/a/b/c.txt")
	require.True(t, ok)
	assert.Equal(t, "c.txt", f.Name)
	assert.False(t, f.CreatedAt.IsZero())
}
