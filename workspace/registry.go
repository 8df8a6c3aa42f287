package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/composite"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/localdir"
	"github.com/brettbedarf/workspacefs/pathutil"
	"github.com/brettbedarf/workspacefs/persist"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

const (
	// MetadataKey is the slot key of the saved workspace list
	MetadataKey = "workspaces"
	// DefaultID is the id of the home workspace
	DefaultID = "home"
	// DefaultHomeName is the display name given to a new home workspace
	DefaultHomeName = "Home"
)

type record struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	MountPath string `json:"mountPath"`
}

type metadata struct {
	Workspaces []record `json:"workspaces"`
}

// Registry creates, connects and removes workspaces and keeps the composite
// mount table in step with them
type Registry struct {
	mu sync.Mutex

	fs        *composite.FileSystem
	slot      persist.Slot
	handles   HandleStore
	factories *xsync.Map[Type, Factory]

	homeName   string
	debounce   time.Duration
	flushDelay time.Duration
	newID      func() string

	workspaces map[string]*Workspace
	order      []string
	adapters   map[string]*persist.Adapter
	opened     bool
}

// Option configures a [Registry]
type Option func(*Registry)

// WithComposite mounts workspaces into fs instead of a fresh namespace
func WithComposite(fs *composite.FileSystem) Option {
	return func(r *Registry) { r.fs = fs }
}

// WithHandleStore keeps local directory handles in hs
func WithHandleStore(hs HandleStore) Option {
	return func(r *Registry) { r.handles = hs }
}

// WithHomeName names the home workspace when it is first created
func WithHomeName(name string) Option {
	return func(r *Registry) { r.homeName = name }
}

// WithDebounce sets the quiet period before virtual workspaces are saved
func WithDebounce(d time.Duration) Option {
	return func(r *Registry) { r.debounce = d }
}

// WithFlushDelay sets how long local workspaces buffer writes
func WithFlushDelay(d time.Duration) Option {
	return func(r *Registry) { r.flushDelay = d }
}

// New returns a registry saving its state to slot. Call [Registry.Open]
// before use.
func New(slot persist.Slot, opts ...Option) *Registry {
	r := &Registry{
		slot:       slot,
		factories:  xsync.NewMap[Type, Factory](),
		homeName:   DefaultHomeName,
		debounce:   persist.DefaultDebounce,
		flushDelay: localdir.DefaultFlushDelay,
		newID:      uuid.NewString,
		workspaces: make(map[string]*Workspace),
		adapters:   make(map[string]*persist.Adapter),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fs == nil {
		r.fs = composite.New()
	}
	if r.handles == nil {
		r.handles = NewMemoryHandleStore(nil)
	}
	if strings.TrimSpace(r.homeName) == "" {
		r.homeName = DefaultHomeName
	}
	r.RegisterFactory(TypeVirtual, r.openVirtual)
	r.RegisterFactory(TypeLocal, r.openLocal)
	return r
}

// FileSystem returns the namespace the workspaces are mounted in
func (r *Registry) FileSystem() *composite.FileSystem { return r.fs }

// Open mounts the saved workspaces and makes sure the home workspace
// exists. Local workspaces start disconnected.
func (r *Registry) Open(ctx context.Context) error {
	logger := util.GetLogger("Registry.Open")

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		return nil
	}

	records, err := r.loadMetadata()
	dirty := false
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring unreadable workspace list")
		dirty = true
	}

	for _, rec := range records {
		if rec.ID == "" || !rec.Type.persisted() || r.workspaces[rec.ID] != nil {
			logger.Warn().Str("id", rec.ID).Str("type", string(rec.Type)).Msg("Skipping invalid workspace record")
			dirty = true
			continue
		}
		ws := &Workspace{
			ID:        rec.ID,
			Name:      strings.TrimSpace(rec.Name),
			Type:      rec.Type,
			MountPath: pathutil.Normalize(rec.MountPath),
			Permanent: rec.ID == DefaultID,
		}
		if ws.Name == "" {
			ws.Name = "Workspace"
		}
		if name := r.uniqueName(ws.Name, ""); name != ws.Name {
			ws.Name, dirty = name, true
		}
		if pathutil.Depth(ws.MountPath) != 1 || r.pathTaken(ws.MountPath, "") {
			ws.MountPath, dirty = r.generateMountPath(ws.Name, ""), true
		}

		if ws.Type == TypeLocal {
			ws.Provider, ws.Status = disconnectedFS{}, StatusDisconnected
		} else {
			p, err := r.build(ctx, ws)
			if err != nil {
				return err
			}
			ws.Provider, ws.Status = p, StatusConnected
		}
		if err := r.add(ws); err != nil {
			return err
		}
	}

	if r.workspaces[DefaultID] == nil {
		home := &Workspace{
			ID:        DefaultID,
			Name:      r.uniqueName(r.homeName, ""),
			Type:      TypeVirtual,
			MountPath: r.generateMountPath(r.homeName, ""),
			Status:    StatusConnected,
			Permanent: true,
		}
		p, err := r.build(ctx, home)
		if err != nil {
			return err
		}
		home.Provider = p
		if err := r.add(home); err != nil {
			return err
		}
		dirty = true
	}

	r.opened = true
	logger.Info().Int("workspaces", len(r.workspaces)).Msg("Workspaces loaded")
	if dirty {
		return r.saveMetadata()
	}
	return nil
}

// CreateVirtual adds an empty, persisted in-memory workspace
func (r *Registry) CreateVirtual(ctx context.Context, name string) (Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workspace{}, workspacefs.Errorf(workspacefs.OpCreate, "", workspacefs.ErrInvalidName, "workspace name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ws := &Workspace{
		ID:        r.newID(),
		Name:      r.uniqueName(name, ""),
		Type:      TypeVirtual,
		MountPath: r.generateMountPath(name, ""),
		Status:    StatusConnected,
	}
	p, err := r.build(ctx, ws)
	if err != nil {
		return Workspace{}, err
	}
	ws.Provider = p
	if err := r.add(ws); err != nil {
		return Workspace{}, err
	}
	return *ws, r.saveMetadata()
}

// CreateLocal mounts a freshly granted directory. The directory is read
// before the workspace is added; a failed read adds nothing. An empty name
// uses the directory's own name.
func (r *Registry) CreateLocal(ctx context.Context, name string, h localdir.Handle) (Workspace, error) {
	logger := util.GetLogger("Registry.CreateLocal")

	if h == nil {
		return Workspace{}, workspacefs.Errorf(workspacefs.OpConnect, "", workspacefs.ErrDisconnected, "no directory handle")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = h.Name()
	}
	if strings.TrimSpace(name) == "" {
		return Workspace{}, workspacefs.Errorf(workspacefs.OpCreate, "", workspacefs.ErrInvalidName, "workspace name is empty")
	}

	// reading the directory and storing the handle happen outside the lock
	ws := &Workspace{
		ID:     r.newID(),
		Name:   name,
		Type:   TypeLocal,
		Status: StatusConnected,
		Handle: h,
	}
	p, err := r.build(ctx, ws)
	if err != nil {
		logger.Error().Err(err).Str("handle", h.Name()).Msg("Failed to open directory")
		return Workspace{}, err
	}
	ws.Provider = p
	if err := r.handles.Store(ctx, ws.ID, h); err != nil {
		release(p)
		return Workspace{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ws.Name = r.uniqueName(name, "")
	ws.MountPath = r.generateMountPath(name, "")
	if err := r.add(ws); err != nil {
		release(p)
		if rmErr := r.handles.Remove(ctx, ws.ID); rmErr != nil {
			logger.Warn().Err(rmErr).Str("id", ws.ID).Msg("Failed to drop stored handle")
		}
		return Workspace{}, err
	}
	logger.Info().Str("name", ws.Name).Str("path", ws.MountPath).Msg("Local workspace added")
	return *ws, r.saveMetadata()
}

// RegisterReadOnly mounts a built-in read-only workspace at its well-known
// path. Built-in workspaces are permanent and are not saved in the
// workspace list. An empty name uses the type's default name.
func (r *Registry) RegisterReadOnly(t Type, name string, p workspacefs.FileSystem) (Workspace, error) {
	known, ok := readOnlyMounts[t]
	if !ok {
		return Workspace{}, fmt.Errorf("%q is not a read-only workspace type", t)
	}
	if strings.TrimSpace(name) == "" {
		name = known.name
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.workspaces[string(t)] != nil {
		return Workspace{}, workspacefs.NewError(workspacefs.OpMount, known.path, workspacefs.ErrAlreadyExists)
	}
	ws := &Workspace{
		ID:        string(t),
		Name:      r.uniqueName(name, ""),
		Type:      t,
		MountPath: known.path,
		Provider:  p,
		Status:    StatusConnected,
		ReadOnly:  true,
		Permanent: true,
	}
	if err := r.add(ws); err != nil {
		return Workspace{}, err
	}
	return *ws, nil
}

// TryReconnectWithStoredHandle reconnects a local workspace using its stored
// handle, asking again for permission without a directory picker. It
// reports false, with no error, when there is no stored handle or access is
// denied; the caller should then ask the user for the directory and call
// [Registry.Reconnect].
func (r *Registry) TryReconnectWithStoredHandle(ctx context.Context, id string) (bool, error) {
	logger := util.GetLogger("Registry.TryReconnect")

	r.mu.Lock()
	ws, err := r.local(workspacefs.OpConnect, id)
	if err != nil {
		r.mu.Unlock()
		return false, err
	}
	if ws.Connected() {
		r.mu.Unlock()
		return true, nil
	}
	snapshot := *ws
	r.mu.Unlock()

	// the permission prompt waits on the user, so the registry stays usable meanwhile
	h, err := r.handles.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if h == nil {
		logger.Debug().Str("id", id).Msg("No stored handle")
		return false, nil
	}
	perm, err := r.handles.RequestPermission(ctx, h)
	if err != nil {
		return false, err
	}
	if perm != localdir.PermissionGranted {
		logger.Info().Str("id", id).Str("permission", string(perm)).Msg("Access not granted")
		return false, nil
	}
	snapshot.Handle = h
	p, err := r.build(ctx, &snapshot)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ws, err = r.local(workspacefs.OpConnect, id)
	if err != nil {
		release(p)
		return false, err
	}
	if ws.Connected() {
		logger.Debug().Str("id", id).Msg("Connected elsewhere while waiting")
		release(p)
		return true, nil
	}
	if err := r.install(ws, h, p); err != nil {
		return false, err
	}
	return true, nil
}

// Reconnect connects a local workspace to a directory the user picked again.
// The handle replaces the stored one.
func (r *Registry) Reconnect(ctx context.Context, id string, h localdir.Handle) error {
	logger := util.GetLogger("Registry.Reconnect")

	if h == nil {
		return workspacefs.Errorf(workspacefs.OpConnect, "", workspacefs.ErrDisconnected, "no directory handle")
	}

	r.mu.Lock()
	ws, err := r.local(workspacefs.OpConnect, id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	snapshot := *ws
	r.mu.Unlock()

	if snapshot.Connected() {
		if err := workspacefs.Flush(ctx, snapshot.Provider); err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("Failed to flush before reconnecting")
		}
	}
	snapshot.Handle = h
	p, err := r.build(ctx, &snapshot)
	if err != nil {
		return err
	}

	r.mu.Lock()
	ws, err = r.local(workspacefs.OpConnect, id)
	if err != nil {
		r.mu.Unlock()
		release(p)
		return err
	}
	old := ws.Provider
	err = r.install(ws, h, p)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	release(old)
	return r.handles.Store(ctx, id, h)
}

// install mounts p, built over h, in place of ws's current provider. Callers hold mu.
func (r *Registry) install(ws *Workspace, h localdir.Handle, p workspacefs.FileSystem) error {
	logger := util.GetLogger("Registry.install")

	next := *ws
	next.Handle, next.Provider, next.Status = h, p, StatusConnected
	if err := r.fs.Replace(ws.MountPath, next.mount()); err != nil {
		release(p)
		return err
	}
	*ws = next
	logger.Info().Str("id", ws.ID).Str("path", ws.MountPath).Msg("Workspace connected")
	return nil
}

// release cuts off a provider that is no longer mounted
func release(p workspacefs.FileSystem) {
	if lp, ok := p.(*localdir.Provider); ok {
		lp.Disconnect()
	}
}

// Disconnect flushes a connected local workspace and cuts it off. Its mount
// and saved metadata stay. The workspace is disconnected even when the flush
// fails; the flush error is returned.
func (r *Registry) Disconnect(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, err := r.local(workspacefs.OpDisconnect, id)
	if err != nil {
		return err
	}
	if !ws.Connected() {
		return workspacefs.NewError(workspacefs.OpDisconnect, ws.MountPath, workspacefs.ErrDisconnected)
	}

	flushErr := workspacefs.Flush(ctx, ws.Provider)
	release(ws.Provider)
	r.markDisconnected(ws)
	return flushErr
}

func (r *Registry) markDisconnected(ws *Workspace) {
	logger := util.GetLogger("Registry.markDisconnected")

	next := *ws
	next.Provider, next.Status = disconnectedFS{}, StatusDisconnected
	if err := r.fs.Replace(ws.MountPath, next.mount()); err != nil {
		logger.Error().Err(err).Str("path", ws.MountPath).Msg("Failed to swap mount")
		return
	}
	*ws = next
	logger.Info().Str("id", ws.ID).Str("path", ws.MountPath).Msg("Workspace disconnected")
}

// Remove unmounts a workspace and deletes what was saved for it. The home
// workspace, the last workspace and built-in workspaces cannot be removed.
func (r *Registry) Remove(ctx context.Context, id string) error {
	logger := util.GetLogger("Registry.Remove")

	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return workspacefs.Errorf(workspacefs.OpUnmount, "", workspacefs.ErrNotFound, "no workspace %q", id)
	}
	switch {
	case id == DefaultID:
		return workspacefs.Errorf(workspacefs.OpUnmount, ws.MountPath, workspacefs.ErrInvalidPath, "the default workspace cannot be removed")
	case len(r.workspaces) == 1:
		return workspacefs.Errorf(workspacefs.OpUnmount, ws.MountPath, workspacefs.ErrInvalidPath, "the only workspace cannot be removed")
	case ws.Permanent:
		return workspacefs.Errorf(workspacefs.OpUnmount, ws.MountPath, workspacefs.ErrInvalidPath, "built-in workspaces cannot be removed")
	}

	var errs []error
	switch ws.Type {
	case TypeVirtual:
		if a, ok := r.adapters[id]; ok {
			if err := a.Close(); err != nil {
				logger.Warn().Err(err).Str("id", id).Msg("Failed to save before removal")
			}
			delete(r.adapters, id)
		}
		errs = append(errs, r.slot.Delete(StateKey(id)))
	case TypeLocal:
		if ws.Connected() {
			if err := workspacefs.Flush(ctx, ws.Provider); err != nil {
				errs = append(errs, err)
			}
			release(ws.Provider)
		}
		errs = append(errs, r.handles.Remove(ctx, id))
	}

	if err := r.fs.Unmount(ws.MountPath); err != nil {
		return err
	}
	if pathutil.IsWithin(r.fs.CurrentDirectory(), ws.MountPath) {
		home := pathutil.Root
		if def, ok := r.workspaces[DefaultID]; ok {
			home = def.MountPath
		}
		r.chdir(home)
	}
	delete(r.workspaces, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	errs = append(errs, r.saveMetadata())

	logger.Info().Str("id", id).Str("path", ws.MountPath).Msg("Workspace removed")
	return errors.Join(errs...)
}

// Rename gives a workspace a new display name and a mount path derived from
// it. Built-in workspaces keep their names.
func (r *Registry) Rename(id, newName string) (Workspace, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Workspace{}, workspacefs.Errorf(workspacefs.OpRename, "", workspacefs.ErrInvalidName, "workspace name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return Workspace{}, workspacefs.Errorf(workspacefs.OpRename, "", workspacefs.ErrNotFound, "no workspace %q", id)
	}
	if ws.ReadOnly {
		return Workspace{}, workspacefs.Errorf(workspacefs.OpRename, ws.MountPath, workspacefs.ErrReadOnly, "built-in workspaces cannot be renamed")
	}
	if newName == ws.Name {
		return *ws, nil
	}

	next := *ws
	next.Name = r.uniqueName(newName, id)
	next.MountPath = r.generateMountPath(newName, id)
	if err := r.fs.Replace(ws.MountPath, next.mount()); err != nil {
		return Workspace{}, err
	}
	if cwd := r.fs.CurrentDirectory(); pathutil.IsWithin(cwd, ws.MountPath) {
		r.chdir(pathutil.Rebase(cwd, ws.MountPath, next.MountPath))
	}
	*ws = next
	return *ws, r.saveMetadata()
}

// RefreshAllLocal rereads every connected local workspace in parallel. One
// failure does not stop the others. The result maps each refreshed mount
// path to its error, nil on success; the returned error joins the failures.
// Workspaces that lost access are disconnected.
func (r *Registry) RefreshAllLocal(ctx context.Context) (map[string]error, error) {
	logger := util.GetLogger("Registry.RefreshAllLocal")

	r.mu.Lock()
	var targets []Workspace
	for _, id := range r.order {
		if ws := r.workspaces[id]; ws.Type == TypeLocal && ws.Connected() {
			targets = append(targets, *ws)
		}
	}
	r.mu.Unlock()

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(targets))
		g       errgroup.Group
	)
	for _, ws := range targets {
		g.Go(func() error {
			err := workspacefs.Refresh(ctx, ws.Provider)
			mu.Lock()
			results[ws.MountPath] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, ws := range targets {
		err := results[ws.MountPath]
		if err == nil {
			continue
		}
		logger.Warn().Err(err).Str("path", ws.MountPath).Msg("Refresh failed")
		errs = append(errs, fmt.Errorf("%s: %w", ws.MountPath, err))
		if errors.Is(err, workspacefs.ErrDisconnected) {
			r.mu.Lock()
			if cur := r.workspaces[ws.ID]; cur != nil && cur.Provider == ws.Provider {
				r.markDisconnected(cur)
			}
			r.mu.Unlock()
		}
	}
	return results, errors.Join(errs...)
}

// Get returns the workspace with the given id
func (r *Registry) Get(id string) (Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return Workspace{}, false
	}
	return *ws, true
}

// List returns every workspace in the order they were added
func (r *Registry) List() []Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Workspace, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.workspaces[id])
	}
	return out
}

// Default returns the home workspace
func (r *Registry) Default() (Workspace, bool) {
	return r.Get(DefaultID)
}

// GenerateMountPath derives a free mount path from name, appending -2, -3 …
// while the path is taken
func (r *Registry) GenerateMountPath(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generateMountPath(name, "")
}

// Close flushes local workspaces, saves virtual ones and the workspace list.
// Every step is attempted; failures are joined.
func (r *Registry) Close(ctx context.Context) error {
	logger := util.GetLogger("Registry.Close")

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, id := range r.order {
		ws := r.workspaces[id]
		if ws.Type == TypeLocal && ws.Connected() {
			if err := workspacefs.Flush(ctx, ws.Provider); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for id, a := range r.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("save workspace %s: %w", id, err))
		}
	}
	if r.opened {
		errs = append(errs, r.saveMetadata())
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save all workspaces")
	}
	return err
}

// chdir moves the namespace's working directory, logging a failure
func (r *Registry) chdir(p string) {
	if err := r.fs.SetCurrentDirectory(p); err != nil {
		logger := util.GetLogger("Registry.chdir")
		logger.Warn().Err(err).Str("path", p).Msg("Failed to move working directory")
	}
}

func (r *Registry) add(ws *Workspace) error {
	if err := r.fs.Mount(ws.mount()); err != nil {
		return err
	}
	r.workspaces[ws.ID] = ws
	r.order = append(r.order, ws.ID)
	return nil
}

// local returns the local workspace id. Callers hold mu.
func (r *Registry) local(op, id string) (*Workspace, error) {
	ws, ok := r.workspaces[id]
	if !ok {
		return nil, workspacefs.Errorf(op, "", workspacefs.ErrNotFound, "no workspace %q", id)
	}
	if ws.Type != TypeLocal {
		return nil, workspacefs.Errorf(op, ws.MountPath, workspacefs.ErrInvalidPath, "%s workspaces are always connected", ws.Type)
	}
	return ws, nil
}

// pathTaken reports whether a mount other than except's uses p
func (r *Registry) pathTaken(p, except string) bool {
	var own string
	if ws := r.workspaces[except]; ws != nil {
		own = ws.MountPath
	}
	for _, m := range r.fs.Mounts() {
		if m.Path == p && m.Path != own {
			return true
		}
	}
	return false
}

func (r *Registry) generateMountPath(name, except string) string {
	base := NameToMountPath(name)
	candidate := base
	for n := 2; r.pathTaken(candidate, except); n++ {
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return candidate
}

// uniqueName appends " (2)", " (3)" … while another workspace has the name
func (r *Registry) uniqueName(name, except string) string {
	taken := func(n string) bool {
		for id, ws := range r.workspaces {
			if id != except && ws.Name == n {
				return true
			}
		}
		return false
	}
	candidate := name
	for n := 2; taken(candidate); n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	return candidate
}

func (r *Registry) loadMetadata() ([]record, error) {
	data, ok, err := r.slot.Get(MetadataKey)
	if err != nil || !ok {
		return nil, err
	}
	var md metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decode workspace list: %w", err)
	}
	return md.Workspaces, nil
}

func (r *Registry) saveMetadata() error {
	md := metadata{Workspaces: []record{}}
	for _, id := range r.order {
		ws := r.workspaces[id]
		if !ws.Type.persisted() {
			continue
		}
		md.Workspaces = append(md.Workspaces, record{ID: ws.ID, Name: ws.Name, Type: ws.Type, MountPath: ws.MountPath})
	}
	data, err := json.Marshal(md)
	if err != nil {
		return err
	}
	return r.slot.Put(MetadataKey, data)
}
