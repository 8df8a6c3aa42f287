package workspace

import (
	"context"
	"fmt"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/localdir"
	"github.com/brettbedarf/workspacefs/persist"
)

// Factory builds the provider for a workspace of one type. ws carries the
// id, name and, for local workspaces, the granted handle. Local factories run
// without the registry lock held; ws.MountPath may still be empty.
type Factory func(ctx context.Context, ws *Workspace) (workspacefs.FileSystem, error)

// RegisterFactory ties a factory to a workspace type, replacing any earlier one
func (r *Registry) RegisterFactory(t Type, f Factory) {
	r.factories.Store(t, f)
}

func (r *Registry) build(ctx context.Context, ws *Workspace) (workspacefs.FileSystem, error) {
	f, ok := r.factories.Load(ws.Type)
	if !ok {
		return nil, fmt.Errorf("no factory for %q", ws.Type)
	}
	return f(ctx, ws)
}

// StateKey is the slot key a virtual workspace's files are saved under
func StateKey(id string) string {
	return "workspace-state-" + id
}

// openVirtual loads a virtual store from the slot and keeps it persisted.
// Unreadable state yields an empty store.
func (r *Registry) openVirtual(_ context.Context, ws *Workspace) (workspacefs.FileSystem, error) {
	logger := util.GetLogger("Registry.openVirtual")

	key := StateKey(ws.ID)
	store, err := persist.Load(r.slot, key)
	if err != nil {
		logger.Error().Err(err).Str("workspace", ws.ID).Msg("Failed to read saved state, starting empty")
	}
	if old, ok := r.adapters[ws.ID]; ok {
		if err := old.Close(); err != nil {
			logger.Warn().Err(err).Str("workspace", ws.ID).Msg("Failed to save previous state")
		}
	}
	r.adapters[ws.ID] = persist.Attach(store, r.slot, key, r.debounce)

	stats := store.Stats()
	logger.Debug().Str("workspace", ws.ID).Int("files", stats.Files).Int("folders", stats.Folders).Msg("Opened virtual workspace")
	return store, nil
}

// openLocal initializes a provider over the workspace's handle
func (r *Registry) openLocal(ctx context.Context, ws *Workspace) (workspacefs.FileSystem, error) {
	if ws.Handle == nil {
		return nil, workspacefs.Errorf(workspacefs.OpConnect, ws.MountPath, workspacefs.ErrDisconnected, "no directory handle")
	}
	p := localdir.New(ws.Handle, localdir.WithFlushDelay(r.flushDelay))
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
