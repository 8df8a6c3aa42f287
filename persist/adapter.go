package persist

import (
	"sync"
	"time"

	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/memstore"
)

// DefaultDebounce is the quiet period before a burst of mutations is saved
const DefaultDebounce = 300 * time.Millisecond

// Adapter saves a store to a slot after mutations settle.
// A crash inside the debounce window loses the mutations made in it.
type Adapter struct {
	store  *memstore.Store
	slot   Slot
	key    string
	window time.Duration

	mu     sync.Mutex // guards timer, dirty, closed
	timer  *time.Timer
	dirty  bool
	closed bool

	saveMu sync.Mutex // serializes writes to the slot
	saves  int
}

// Attach starts persisting store to slot under key.
// A window of zero or less uses [DefaultDebounce].
func Attach(store *memstore.Store, slot Slot, key string, window time.Duration) *Adapter {
	if window <= 0 {
		window = DefaultDebounce
	}
	a := &Adapter{store: store, slot: slot, key: key, window: window}
	store.OnChange(a.schedule)
	return a
}

// Store returns the persisted store
func (a *Adapter) Store() *memstore.Store { return a.store }

// Key returns the slot key the store is saved under
func (a *Adapter) Key() string { return a.key }

func (a *Adapter) schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.dirty = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.window, a.fire)
}

func (a *Adapter) fire() {
	if err := a.Flush(); err != nil {
		logger := util.GetLogger("persist.Adapter")
		logger.Error().Err(err).Str("key", a.key).Msg("Failed to save store state")
	}
}

// Pending reports whether mutations are waiting to be saved
func (a *Adapter) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Saves returns how many times the state has been written
func (a *Adapter) Saves() int {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return a.saves
}

// Flush writes pending mutations now
func (a *Adapter) Flush() error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return nil
	}
	a.dirty = false
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if err := a.save(); err != nil {
		a.mu.Lock()
		a.dirty = true
		a.mu.Unlock()
		return err
	}
	return nil
}

// Save writes the current state regardless of pending mutations
func (a *Adapter) Save() error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return a.save()
}

func (a *Adapter) save() error {
	logger := util.GetLogger("persist.Adapter")

	data, err := Encode(a.store.State())
	if err != nil {
		return err
	}
	if err := a.slot.Put(a.key, data); err != nil {
		return err
	}
	a.saves++
	logger.Trace().Str("key", a.key).Int("bytes", len(data)).Msg("Saved store state")
	return nil
}

// Close stops scheduling saves and flushes what is pending
func (a *Adapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush()
}
