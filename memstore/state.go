package memstore

import (
	"maps"
	"slices"

	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/pathutil"
)

// StateVersion is the version stamped on exported state
const StateVersion = 1

// State is the serializable content of a [Store]
type State struct {
	Version int                     `json:"version"`
	Files   map[string]*VirtualFile `json:"files"`
	Folders []string                `json:"folders"`
}

// State returns a deep copy of the store's content. Folders are sorted.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Version: StateVersion,
		Files:   make(map[string]*VirtualFile, len(s.files)),
		Folders: slices.Sorted(maps.Keys(s.folders)),
	}
	for p, f := range s.files {
		cp := *f
		st.Files[p] = &cp
	}
	return st
}

// LoadState replaces the store's content with st.
// Paths are normalized and missing ancestor folders are registered so the
// parent invariant holds even for hand-edited or older payloads. Listeners
// are not notified.
func (s *Store) LoadState(st State) {
	logger := util.GetLogger("Store.LoadState")

	files := make(map[string]*VirtualFile, len(st.Files))
	folders := make(map[string]struct{}, len(st.Folders))
	addAncestors := func(p string) int {
		added := 0
		for d := pathutil.Parent(p); d != pathutil.Root; d = pathutil.Parent(d) {
			if _, ok := folders[d]; !ok {
				folders[d] = struct{}{}
				added++
			}
		}
		return added
	}

	repaired := 0
	for _, d := range st.Folders {
		p := pathutil.Normalize(d)
		if p == pathutil.Root {
			continue
		}
		folders[p] = struct{}{}
	}
	for _, d := range slices.Collect(maps.Keys(folders)) {
		repaired += addAncestors(d)
	}
	now := s.now()
	for k, f := range st.Files {
		if f == nil {
			continue
		}
		p := pathutil.Normalize(k)
		if p == pathutil.Root {
			continue
		}
		cp := *f
		cp.Name = pathutil.Leaf(p)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = cp.CreatedAt
		}
		files[p] = &cp
		repaired += addAncestors(p)
	}
	for p := range files {
		if _, clash := folders[p]; clash {
			logger.Warn().Str("path", p).Msg("Dropping file that collides with a folder")
			delete(files, p)
		}
	}
	if repaired > 0 {
		logger.Warn().Int("folders", repaired).Msg("Registered missing ancestor folders")
	}

	s.mu.Lock()
	s.files = files
	s.folders = folders
	s.mu.Unlock()
}
