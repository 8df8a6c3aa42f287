package main

import (
	"bytes"
	"testing"

	"github.com/brettbedarf/workspacefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	t.Parallel()

	p, err := parsePair("game = /src/game")
	require.NoError(t, err)
	assert.Equal(t, pair{"game", "/src/game"}, p)

	p, err = parsePair("a=b=c")
	require.NoError(t, err)
	assert.Equal(t, pair{"a", "b=c"}, p)

	for _, bad := range []string{"", "game", "=path", "name="} {
		_, err := parsePair(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags([]string{
		"-v", "5", "--state-dir", "/tmp/ws",
		"--local", "game=/src/game", "--manifest", "library=libs.yaml",
		"/mnt/ws",
	})
	require.NoError(t, err)
	assert.Equal(t, "/mnt/ws", opts.mountpoint)
	assert.Equal(t, []pair{{"game", "/src/game"}}, opts.locals)
	assert.Equal(t, []pair{{"library", "libs.yaml"}}, opts.manifests)
	require.NotNil(t, opts.override.LogLvl)
	assert.Equal(t, 5, *opts.override.LogLvl)
	assert.Equal(t, "/tmp/ws", *opts.override.StateDir)
	assert.Nil(t, opts.override.HomeName, "unset flags must not override config")

	_, err = parseFlags([]string{"--manifest", "virtual=x.yaml"})
	assert.Error(t, err)
	_, err = parseFlags([]string{"--local", "nopath"})
	assert.Error(t, err)
}

func TestPrintTree(t *testing.T) {
	t.Parallel()

	tree := []*workspacefs.TreeNode{
		{Name: "Home", Path: "/home", Type: workspacefs.FolderEntry, IsWorkspace: true, Children: []*workspacefs.TreeNode{
			{Name: "src", Path: "/home/src", Type: workspacefs.FolderEntry, Children: []*workspacefs.TreeNode{
				{Name: "main.lua", Path: "/home/src/main.lua", Type: workspacefs.FileEntry},
			}},
		}},
		{Name: "Game", Path: "/game", Type: workspacefs.FolderEntry, IsWorkspace: true, IsDisconnected: true},
		{Name: "Libraries", Path: "/libs", Type: workspacefs.FolderEntry, IsWorkspace: true, IsReadOnly: true},
	}

	var buf bytes.Buffer
	printTree(&buf, tree, "")
	assert.Equal(t, "Home/ (/home)\n  src/\n    main.lua\nGame/ (/game, disconnected)\nLibraries/ (/libs, read-only)\n", buf.String())
}
