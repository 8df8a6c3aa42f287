// Package localdir adapts a user-granted directory into a mountable provider.
// Reads are served from a cache built by [Provider.Initialize]; writes update
// the cache at once and reach the directory on the next flush.
package localdir

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/pathutil"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// DefaultFlushDelay is how long writes stay buffered before an automatic flush
const DefaultFlushDelay = 250 * time.Millisecond

var (
	_ workspacefs.FileSystem   = (*Provider)(nil)
	_ workspacefs.Flusher      = (*Provider)(nil)
	_ workspacefs.Refresher    = (*Provider)(nil)
	_ workspacefs.BinaryReader = (*Provider)(nil)
)

type opKind int

const (
	opWrite opKind = iota
	opMkdir
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opWrite:
		return "write"
	case opMkdir:
		return "mkdir"
	case opDelete:
		return "delete"
	}
	return "unknown"
}

// pendingOp is a mutation not yet applied to the handle
type pendingOp struct {
	kind opKind
	path string
	data []byte
}

// Provider serves a [Handle] through the provider contract
type Provider struct {
	handle     Handle
	flushDelay time.Duration

	mu           sync.RWMutex
	files        map[string][]byte
	dirs         map[string]struct{}
	pending      []pendingOp
	initialized  bool
	disconnected bool
	timer        *time.Timer

	flushMu sync.Mutex // one flush at a time, in queue order
	cwd     pathutil.WorkingDir
}

// Option configures a [Provider]
type Option func(*Provider)

// WithFlushDelay sets the automatic flush delay; zero or less disables
// automatic flushing so only explicit Flush calls write
func WithFlushDelay(d time.Duration) Option {
	return func(p *Provider) { p.flushDelay = d }
}

// New returns a provider for h. It must be initialized before use.
func New(h Handle, opts ...Option) *Provider {
	p := &Provider{
		handle:     h,
		flushDelay: DefaultFlushDelay,
		files:      make(map[string][]byte),
		dirs:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle returns the granted directory
func (p *Provider) Handle() Handle { return p.handle }

// Initialize builds the cache by walking the handle
func (p *Provider) Initialize(ctx context.Context) error {
	logger := util.GetLogger("localdir.Initialize")

	files, dirs, err := p.scan(ctx)
	if err != nil {
		logger.Error().Err(err).Str("handle", p.handle.Name()).Msg("Failed to read directory")
		return p.classify(workspacefs.OpConnect, pathutil.Root, err)
	}

	p.mu.Lock()
	p.files, p.dirs = files, dirs
	p.initialized = true
	p.disconnected = false
	p.mu.Unlock()

	logger.Debug().Str("handle", p.handle.Name()).Int("files", len(files)).Int("dirs", len(dirs)).Msg("Initialized")
	return nil
}

func (p *Provider) scan(ctx context.Context) (map[string][]byte, map[string]struct{}, error) {
	files := make(map[string][]byte)
	dirs := make(map[string]struct{})
	fsys := p.handle.FS()
	err := p.handle.Walk(ctx, func(path string, isDir bool) error {
		if isDir {
			dirs[path] = struct{}{}
			return nil
		}
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files[path] = data
		return nil
	})
	return files, dirs, err
}

// classify wraps a handle error, turning permission loss into Disconnected
func (p *Provider) classify(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		p.mu.Lock()
		p.disconnected = true
		p.mu.Unlock()
		return workspacefs.Errorf(op, path, workspacefs.ErrDisconnected, "%v", err)
	}
	return workspacefs.NewError(op, path, err)
}

// Disconnect makes every later call fail until the provider is initialized again
func (p *Provider) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Connected reports whether the provider is initialized and has not lost access
func (p *Provider) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized && !p.disconnected
}

// guard fails with Disconnected unless the provider is usable. Callers hold mu.
func (p *Provider) guard(op, path string) error {
	if !p.initialized || p.disconnected {
		return workspacefs.NewError(op, path, workspacefs.ErrDisconnected)
	}
	return nil
}

func (p *Provider) isDir(path string) bool {
	if path == pathutil.Root {
		return true
	}
	_, ok := p.dirs[path]
	return ok
}

func (p *Provider) CurrentDirectory() string { return p.cwd.Get() }

func (p *Provider) SetCurrentDirectory(path string) error {
	p.mu.RLock()
	err := p.guard(workspacefs.OpChdir, pathutil.Normalize(path))
	p.mu.RUnlock()
	if err != nil {
		return err
	}
	return p.cwd.Set(path, p.IsDirectory, p.Exists)
}

func (p *Provider) Exists(path string) bool {
	path = pathutil.Normalize(path)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.guard("", path) != nil {
		return false
	}
	_, isFile := p.files[path]
	return isFile || p.isDir(path)
}

func (p *Provider) IsDirectory(path string) bool {
	path = pathutil.Normalize(path)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.guard("", path) == nil && p.isDir(path)
}

func (p *Provider) IsFile(path string) bool {
	path = pathutil.Normalize(path)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.guard("", path) != nil {
		return false
	}
	_, ok := p.files[path]
	return ok
}

func (p *Provider) ListDirectory(path string) ([]workspacefs.Entry, error) {
	path = pathutil.Normalize(path)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.guard(workspacefs.OpList, path); err != nil {
		return nil, err
	}
	if !p.isDir(path) {
		if _, ok := p.files[path]; ok {
			return nil, workspacefs.NewError(workspacefs.OpList, path, workspacefs.ErrNotDirectory)
		}
		return nil, workspacefs.NewError(workspacefs.OpList, path, workspacefs.ErrNotFound)
	}

	var entries []workspacefs.Entry
	for d := range p.dirs {
		if pathutil.Parent(d) == path {
			entries = append(entries, workspacefs.Entry{Name: pathutil.Leaf(d), Type: workspacefs.FolderEntry, Path: d})
		}
	}
	for f := range p.files {
		if pathutil.Parent(f) == path {
			entries = append(entries, workspacefs.Entry{Name: pathutil.Leaf(f), Type: workspacefs.FileEntry, Path: f})
		}
	}
	workspacefs.SortEntries(entries)
	return entries, nil
}

func (p *Provider) readBytes(op, path string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.guard(op, path); err != nil {
		return nil, err
	}
	data, ok := p.files[path]
	if !ok {
		if p.isDir(path) {
			return nil, workspacefs.NewError(op, path, workspacefs.ErrIsDirectory)
		}
		return nil, workspacefs.NewError(op, path, workspacefs.ErrNotFound)
	}
	return data, nil
}

func (p *Provider) ReadFile(path string) (string, error) {
	data, err := p.readBytes(workspacefs.OpRead, pathutil.Normalize(path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *Provider) ReadBinaryFile(path string) ([]byte, error) {
	data, err := p.readBytes(workspacefs.OpRead, pathutil.Normalize(path))
	if err != nil {
		return nil, err
	}
	return slices.Clone(data), nil
}

// IsBinaryFile sniffs the cached content; empty files count as text
func (p *Provider) IsBinaryFile(path string) bool {
	data, err := p.readBytes(workspacefs.OpRead, pathutil.Normalize(path))
	if err != nil || len(data) == 0 {
		return false
	}
	return !isText(mimetype.Detect(data))
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") ||
			m.Is("application/json") ||
			m.Is("application/xml") ||
			m.Is("application/javascript") {
			return true
		}
	}
	return false
}

func (p *Provider) WriteFile(path, content string) error {
	path = pathutil.Normalize(path)
	if err := pathutil.ValidateName(pathutil.Leaf(path)); err != nil {
		return workspacefs.NewError(workspacefs.OpWrite, path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(workspacefs.OpWrite, path); err != nil {
		return err
	}
	if p.isDir(path) {
		return workspacefs.NewError(workspacefs.OpWrite, path, workspacefs.ErrIsDirectory)
	}
	if !p.isDir(pathutil.Parent(path)) {
		return workspacefs.NewError(workspacefs.OpWrite, path, workspacefs.ErrParentNotFound)
	}
	data := []byte(content)
	p.files[path] = data
	p.enqueueLocked(pendingOp{kind: opWrite, path: path, data: data})
	return nil
}

func (p *Provider) CreateDirectory(path string) error {
	path = pathutil.Normalize(path)
	if path == pathutil.Root {
		return workspacefs.NewError(workspacefs.OpMkdir, path, workspacefs.ErrAlreadyExists)
	}
	if err := pathutil.ValidateName(pathutil.Leaf(path)); err != nil {
		return workspacefs.NewError(workspacefs.OpMkdir, path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(workspacefs.OpMkdir, path); err != nil {
		return err
	}
	if _, ok := p.files[path]; ok || p.isDir(path) {
		return workspacefs.NewError(workspacefs.OpMkdir, path, workspacefs.ErrAlreadyExists)
	}
	if !p.isDir(pathutil.Parent(path)) {
		return workspacefs.NewError(workspacefs.OpMkdir, path, workspacefs.ErrParentNotFound)
	}
	p.dirs[path] = struct{}{}
	p.enqueueLocked(pendingOp{kind: opMkdir, path: path})
	return nil
}

func (p *Provider) Delete(path string) error {
	path = pathutil.Normalize(path)
	if path == pathutil.Root {
		return workspacefs.Errorf(workspacefs.OpRemove, path, workspacefs.ErrInvalidPath, "the root folder cannot be removed")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.guard(workspacefs.OpRemove, path); err != nil {
		return err
	}
	if _, ok := p.files[path]; ok {
		delete(p.files, path)
	} else if p.isDir(path) {
		for f := range p.files {
			if pathutil.IsStrictlyWithin(f, path) {
				delete(p.files, f)
			}
		}
		for d := range p.dirs {
			if pathutil.IsWithin(d, path) {
				delete(p.dirs, d)
			}
		}
	} else {
		return workspacefs.NewError(workspacefs.OpRemove, path, workspacefs.ErrNotFound)
	}
	p.enqueueLocked(pendingOp{kind: opDelete, path: path})
	return nil
}

// enqueueLocked records op and (re)arms the flush timer. Callers hold mu.
func (p *Provider) enqueueLocked(op pendingOp) {
	p.pending = append(p.pending, op)
	if p.flushDelay <= 0 {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.flushDelay, func() {
		if err := p.Flush(context.Background()); err != nil {
			logger := util.GetLogger("localdir.Flush")
			logger.Error().Err(err).Str("handle", p.handle.Name()).Msg("Background flush failed")
		}
	})
}

// Pending returns the number of mutations not yet written to the handle
func (p *Provider) Pending() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pending)
}

// Flush applies pending mutations to the handle in order. On failure the
// failed mutation and everything after it stay queued.
func (p *Provider) Flush(ctx context.Context) error {
	logger := util.GetLogger("localdir.Flush")

	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	if err := p.guard(workspacefs.OpFlush, pathutil.Root); err != nil {
		p.mu.Unlock()
		return err
	}
	ops := p.pending
	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}
	fsys := p.handle.FS()
	for i, op := range ops {
		err := ctx.Err()
		if err == nil {
			err = apply(fsys, op)
		}
		if err != nil {
			p.mu.Lock()
			p.pending = append(slices.Clone(ops[i:]), p.pending...)
			p.mu.Unlock()
			logger.Error().Err(err).Str("op", op.kind.String()).Str("path", op.path).Int("remaining", len(ops)-i).Msg("Flush stopped")
			return p.classify(workspacefs.OpFlush, op.path, err)
		}
	}
	logger.Trace().Str("handle", p.handle.Name()).Int("ops", len(ops)).Msg("Flushed")
	return nil
}

func apply(fsys afero.Fs, op pendingOp) error {
	switch op.kind {
	case opWrite:
		if err := fsys.MkdirAll(pathutil.Parent(op.path), 0o755); err != nil {
			return err
		}
		return afero.WriteFile(fsys, op.path, op.data, 0o644)
	case opMkdir:
		return fsys.MkdirAll(op.path, 0o755)
	case opDelete:
		return fsys.RemoveAll(op.path)
	}
	return nil
}

// Refresh re-reads the directory to pick up changes made outside the
// provider. Mutations still waiting for a flush are replayed on top.
func (p *Provider) Refresh(ctx context.Context) error {
	logger := util.GetLogger("localdir.Refresh")

	// a flush landing between scan and replay would drop its writes from both
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.RLock()
	err := p.guard(workspacefs.OpRefresh, pathutil.Root)
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	files, dirs, err := p.scan(ctx)
	if err != nil {
		return p.classify(workspacefs.OpRefresh, pathutil.Root, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, op := range p.pending {
		replay(files, dirs, op)
	}
	added, removed := diffKeys(p.files, files)
	p.files, p.dirs = files, dirs
	logger.Debug().Str("handle", p.handle.Name()).Int("added", added).Int("removed", removed).Msg("Refreshed")
	return nil
}

func replay(files map[string][]byte, dirs map[string]struct{}, op pendingOp) {
	switch op.kind {
	case opWrite:
		for d := pathutil.Parent(op.path); d != pathutil.Root; d = pathutil.Parent(d) {
			dirs[d] = struct{}{}
		}
		files[op.path] = op.data
	case opMkdir:
		for d := op.path; d != pathutil.Root; d = pathutil.Parent(d) {
			dirs[d] = struct{}{}
		}
	case opDelete:
		for f := range files {
			if pathutil.IsWithin(f, op.path) {
				delete(files, f)
			}
		}
		for d := range dirs {
			if pathutil.IsWithin(d, op.path) {
				delete(dirs, d)
			}
		}
	}
}

func diffKeys(before, after map[string][]byte) (added, removed int) {
	for k := range after {
		if _, ok := before[k]; !ok {
			added++
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			removed++
		}
	}
	return added, removed
}

// FilePaths returns the cached file paths in sorted order
func (p *Provider) FilePaths() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.files))
}
