package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/memstore"
)

// CurrentVersion is the payload version written by [Encode]
const CurrentVersion = memstore.StateVersion

// payload mirrors memstore.State with every piece optional so that a
// missing piece can be told apart from an empty one
type payload struct {
	Version *int                              `json:"version,omitempty"`
	Files   *map[string]*memstore.VirtualFile `json:"files,omitempty"`
	Folders *[]string                         `json:"folders,omitempty"`
}

// Encode serializes a store state
func Encode(st memstore.State) ([]byte, error) {
	st.Version = CurrentVersion
	if st.Files == nil {
		st.Files = map[string]*memstore.VirtualFile{}
	}
	if st.Folders == nil {
		st.Folders = []string{}
	}
	return json.Marshal(st)
}

// Decode parses a payload, defaulting whichever of files/folders is missing
// and migrating older versions. Malformed JSON is an error.
func Decode(data []byte) (memstore.State, error) {
	logger := util.GetLogger("persist.Decode")

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return memstore.State{}, fmt.Errorf("failed to parse store state: %w", err)
	}
	st := memstore.State{
		Version: util.ValueOrDefault(p.Version, 0),
		Files:   util.ValueOrDefault(p.Files, nil),
		Folders: util.ValueOrDefault(p.Folders, nil),
	}
	if st.Files == nil {
		logger.Warn().Msg("State payload has no files, defaulting to empty")
		st.Files = map[string]*memstore.VirtualFile{}
	}
	if st.Folders == nil {
		logger.Warn().Msg("State payload has no folders, defaulting to empty")
		st.Folders = []string{}
	}
	return migrate(st, time.Now()), nil
}

// migrate upgrades st to CurrentVersion.
// v0 payloads predate timestamps.
func migrate(st memstore.State, now time.Time) memstore.State {
	if st.Version >= CurrentVersion {
		return st
	}
	logger := util.GetLogger("persist.migrate")
	logger.Info().Int("from", st.Version).Int("to", CurrentVersion).Msg("Migrating store state")

	if st.Version < 1 {
		for _, f := range st.Files {
			if f == nil {
				continue
			}
			if f.CreatedAt.IsZero() {
				f.CreatedAt = now
			}
			if f.UpdatedAt.IsZero() {
				f.UpdatedAt = f.CreatedAt
			}
		}
	}
	st.Version = CurrentVersion
	return st
}

// Load restores the store saved under key. A missing or unreadable payload
// yields a fresh empty store; the returned error only reports slot I/O
// failures and never comes with a nil store.
func Load(slot Slot, key string) (*memstore.Store, error) {
	logger := util.GetLogger("persist.Load")

	store := memstore.New()
	data, ok, err := slot.Get(key)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("Failed to read store state, starting empty")
		return store, err
	}
	if !ok {
		logger.Debug().Str("key", key).Msg("No saved state, starting empty")
		return store, nil
	}
	st, err := Decode(data)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Corrupt store state, starting empty")
		return store, nil
	}
	store.LoadState(st)
	stats := store.Stats()
	logger.Debug().Str("key", key).Int("files", stats.Files).Int("folders", stats.Folders).Msg("Loaded store state")
	return store, nil
}
