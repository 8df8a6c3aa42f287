package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlots(t *testing.T) {
	t.Parallel()

	s := NewMemorySlots()
	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	data := []byte(`{"a":1}`)
	require.NoError(t, s.Put("k", data))
	data[0] = 'X'

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))
	assert.Equal(t, []string{"k"}, s.Keys())

	require.NoError(t, s.Delete("k"))
	_, ok, _ = s.Get("k")
	assert.False(t, ok)
}

func TestFileSlots(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			s, err := NewFileSlots(filepath.Join(dir, "state"), compress)
			require.NoError(t, err)

			payload := bytes.Repeat([]byte(`{"content":"hello"}`), 100)
			require.NoError(t, s.Put("workspacefs:vfs:home", payload))

			got, ok, err := s.Get("workspacefs:vfs:home")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, payload, got)

			onDisk, err := os.ReadFile(filepath.Join(s.Dir(), "workspacefs_vfs_home.json"))
			require.NoError(t, err)
			assert.Equal(t, compress, bytes.HasPrefix(onDisk, zstdMagic))
			if compress {
				assert.Less(t, len(onDisk), len(payload))
			}

			entries, err := os.ReadDir(s.Dir())
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temp files are cleaned up")

			require.NoError(t, s.Delete("workspacefs:vfs:home"))
			_, ok, err = s.Get("workspacefs:vfs:home")
			require.NoError(t, err)
			assert.False(t, ok)
			require.NoError(t, s.Delete("workspacefs:vfs:home"))
		})
	}
}

func TestFileSlotsReadsEitherEncoding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	compressed, err := NewFileSlots(dir, true)
	require.NoError(t, err)
	require.NoError(t, compressed.Put("k", []byte("abc")))

	plain, err := NewFileSlots(dir, false)
	require.NoError(t, err)
	got, ok, err := plain.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}
