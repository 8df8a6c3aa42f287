// Package persist saves virtual stores to durable key-value slots, with
// debounced writes and tolerant loading.
package persist

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/puzpuzpuz/xsync/v4"
)

// Slot is a durable key-value slot
type Slot interface {
	// Get returns the stored bytes; ok is false when nothing is stored under key
	Get(key string) (data []byte, ok bool, err error)
	Put(key string, data []byte) error
	Delete(key string) error
}

// MemorySlots keeps slots in process memory
type MemorySlots struct {
	data *xsync.Map[string, []byte]
}

var _ Slot = (*MemorySlots)(nil)

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{data: xsync.NewMap[string, []byte]()}
}

func (m *MemorySlots) Get(key string) ([]byte, bool, error) {
	v, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (m *MemorySlots) Put(key string, data []byte) error {
	m.data.Store(key, bytes.Clone(data))
	return nil
}

func (m *MemorySlots) Delete(key string) error {
	m.data.Delete(key)
	return nil
}

// Keys returns the stored keys in no particular order
func (m *MemorySlots) Keys() []string {
	keys := make([]string, 0, m.data.Size())
	m.data.Range(func(k string, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// zstdMagic prefixes every zstd frame
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileSlots stores one file per key under a directory.
// Writes go to a temp file renamed into place so a crash never leaves a torn slot.
type FileSlots struct {
	dir      string
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	mu       sync.Mutex
}

var _ Slot = (*FileSlots)(nil)

// NewFileSlots creates dir if needed. With compress set, payloads are written
// zstd-compressed; reads accept both forms either way.
func NewFileSlots(dir string, compress bool) (*FileSlots, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &FileSlots{dir: dir, compress: compress, enc: enc, dec: dec}, nil
}

// Dir returns the directory slots are stored in
func (f *FileSlots) Dir() string { return f.dir }

func (f *FileSlots) path(key string) string {
	return filepath.Join(f.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (f *FileSlots) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	if bytes.HasPrefix(raw, zstdMagic) {
		raw, err = f.dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decompress slot %s: %w", key, err)
		}
	}
	return raw, true, nil
}

func (f *FileSlots) Put(key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.compress {
		data = f.enc.EncodeAll(data, nil)
	}
	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for slot %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit slot %s: %w", key, err)
	}
	return nil
}

func (f *FileSlots) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}
