package workspace

import (
	"context"

	"github.com/brettbedarf/workspacefs/localdir"
	"github.com/puzpuzpuz/xsync/v4"
)

// HandleStore keeps granted directory handles across sessions, keyed by
// workspace id. Handles are not part of the workspace metadata.
type HandleStore interface {
	Store(ctx context.Context, id string, h localdir.Handle) error
	// Get returns nil without error when no handle is stored for id
	Get(ctx context.Context, id string) (localdir.Handle, error)
	Remove(ctx context.Context, id string) error
	// RequestPermission asks again for access to a previously granted handle
	RequestPermission(ctx context.Context, h localdir.Handle) (localdir.Permission, error)
}

// MemoryHandleStore is a process-local [HandleStore]
type MemoryHandleStore struct {
	handles *xsync.Map[string, localdir.Handle]
	decide  func(localdir.Handle) localdir.Permission
}

var _ HandleStore = (*MemoryHandleStore)(nil)

// NewMemoryHandleStore returns an empty store. decide answers permission
// requests; nil grants every request.
func NewMemoryHandleStore(decide func(localdir.Handle) localdir.Permission) *MemoryHandleStore {
	if decide == nil {
		decide = func(localdir.Handle) localdir.Permission { return localdir.PermissionGranted }
	}
	return &MemoryHandleStore{handles: xsync.NewMap[string, localdir.Handle](), decide: decide}
}

func (s *MemoryHandleStore) Store(_ context.Context, id string, h localdir.Handle) error {
	s.handles.Store(id, h)
	return nil
}

func (s *MemoryHandleStore) Get(_ context.Context, id string) (localdir.Handle, error) {
	h, _ := s.handles.Load(id)
	return h, nil
}

func (s *MemoryHandleStore) Remove(_ context.Context, id string) error {
	s.handles.Delete(id)
	return nil
}

func (s *MemoryHandleStore) RequestPermission(ctx context.Context, h localdir.Handle) (localdir.Permission, error) {
	if err := ctx.Err(); err != nil {
		return localdir.PermissionDenied, err
	}
	return s.decide(h), nil
}
