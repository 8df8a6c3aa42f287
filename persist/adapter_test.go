package persist

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brettbedarf/workspacefs/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = 20 * time.Millisecond

// countingSlot records writes and can be told to fail
type countingSlot struct {
	*MemorySlots
	mu      sync.Mutex
	puts    int
	failPut error
}

func newCountingSlot() *countingSlot {
	return &countingSlot{MemorySlots: NewMemorySlots()}
}

func (c *countingSlot) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPut != nil {
		return c.failPut
	}
	c.puts++
	return c.MemorySlots.Put(key, data)
}

func (c *countingSlot) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

func TestAdapterEventuallyPersists(t *testing.T) {
	t.Parallel()

	slot := newCountingSlot()
	store := memstore.New()
	a := Attach(store, slot, "vfs:home", testWindow)

	require.NoError(t, store.CreateFolder("/src"))
	require.NoError(t, store.Create("/src/main.lua", "print(1)"))
	assert.True(t, a.Pending())

	require.Eventually(t, func() bool {
		_, ok, _ := slot.Get("vfs:home")
		return ok && !a.Pending()
	}, time.Second, 5*time.Millisecond)

	loaded, err := Load(slot, "vfs:home")
	require.NoError(t, err)
	got, ok := loaded.Read("/src/main.lua")
	require.True(t, ok)
	assert.Equal(t, "print(1)", got)
}

func TestAdapterCoalescesBursts(t *testing.T) {
	t.Parallel()

	const burstWindow = 100 * time.Millisecond
	slot := newCountingSlot()
	store := memstore.New()
	a := Attach(store, slot, "k", burstWindow)

	require.NoError(t, store.Create("/f.txt", ""))
	for i := 0; i < 50; i++ {
		require.NoError(t, store.Write("/f.txt", string(rune('a'+i%26))))
	}

	require.Eventually(t, func() bool { return slot.putCount() >= 1 && !a.Pending() }, time.Second, 5*time.Millisecond)
	// nothing else arrives once the store is quiet
	time.Sleep(3 * burstWindow)
	assert.Equal(t, 1, slot.putCount())
	assert.Equal(t, 1, a.Saves())
}

func TestAdapterFlushWritesImmediately(t *testing.T) {
	t.Parallel()

	slot := newCountingSlot()
	store := memstore.New()
	a := Attach(store, slot, "k", time.Hour)

	require.NoError(t, store.Create("/f.txt", "x"))
	_, ok, _ := slot.Get("k")
	assert.False(t, ok)

	require.NoError(t, a.Flush())
	_, ok, _ = slot.Get("k")
	assert.True(t, ok)
	assert.False(t, a.Pending())

	// nothing pending, nothing written
	require.NoError(t, a.Flush())
	assert.Equal(t, 1, slot.putCount())
}

func TestAdapterFlushFailureKeepsPending(t *testing.T) {
	t.Parallel()

	slot := newCountingSlot()
	slot.failPut = errors.New("disk full")
	store := memstore.New()
	a := Attach(store, slot, "k", time.Hour)

	require.NoError(t, store.Create("/f.txt", "x"))
	assert.EqualError(t, a.Flush(), "disk full")
	assert.True(t, a.Pending())

	slot.mu.Lock()
	slot.failPut = nil
	slot.mu.Unlock()
	require.NoError(t, a.Flush())
	assert.False(t, a.Pending())
}

func TestAdapterClose(t *testing.T) {
	t.Parallel()

	slot := newCountingSlot()
	store := memstore.New()
	a := Attach(store, slot, "k", time.Hour)

	require.NoError(t, store.Create("/f.txt", "x"))
	require.NoError(t, a.Close())
	assert.Equal(t, 1, slot.putCount())

	require.NoError(t, store.Write("/f.txt", "after close"))
	assert.False(t, a.Pending())
	time.Sleep(2 * testWindow)
	assert.Equal(t, 1, slot.putCount())
}

func TestAttachDefaultsWindow(t *testing.T) {
	t.Parallel()

	a := Attach(memstore.New(), NewMemorySlots(), "k", 0)
	assert.Equal(t, DefaultDebounce, a.window)
	assert.Equal(t, "k", a.Key())
}
