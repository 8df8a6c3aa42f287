package fusemount

import (
	"context"
	"sync"
	"syscall"

	"github.com/brettbedarf/workspacefs"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// handle buffers an open file. Writes land in the buffer and reach the
// namespace on flush, fsync and release.
type handle struct {
	node *node

	mu    sync.Mutex
	data  []byte
	dirty bool
}

var (
	_ fs.FileReader   = (*handle)(nil)
	_ fs.FileWriter   = (*handle)(nil)
	_ fs.FileFlusher  = (*handle)(nil)
	_ fs.FileFsyncer  = (*handle)(nil)
	_ fs.FileReleaser = (*handle)(nil)
)

func (h *handle) size() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(len(h.data))
}

func (h *handle) truncate(size int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = resize(h.data, size)
	h.dirty = true
}

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if off >= int64(len(h.data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := min(int(off)+len(dest), len(h.data))
	return fuse.ReadResultData(h.data[off:end]), 0
}

func (h *handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = splice(h.data, int(off), data)
	h.dirty = true
	return uint32(len(data)), 0
}

func (h *handle) save() syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return 0
	}
	if err := h.node.ns.WriteFile(h.node.nsPath(), string(h.data)); err != nil {
		return ToErrno(err)
	}
	h.dirty = false
	return 0
}

func (h *handle) Flush(ctx context.Context) syscall.Errno {
	return h.save()
}

// Fsync also pushes buffered provider writes to their backing store
func (h *handle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	if errno := h.save(); errno != 0 {
		return errno
	}
	return ToErrno(workspacefs.Flush(ctx, h.node.ns))
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	return h.save()
}

// splice writes in at off, zero-filling any gap past the end of data
func splice(data []byte, off int, in []byte) []byte {
	end := off + len(in)
	if end > len(data) {
		data = resize(data, end)
	}
	copy(data[off:end], in)
	return data
}

// resize truncates data or zero-extends it to size
func resize(data []byte, size int) []byte {
	if size <= len(data) {
		return data[:size]
	}
	if size <= cap(data) {
		tail := data[len(data):size]
		clear(tail)
		return data[:size]
	}
	grown := make([]byte, size)
	copy(grown, data)
	return grown
}
