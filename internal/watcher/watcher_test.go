package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavignes/roolz/internal/reload"
)

// eventCollector is a Sink that records everything it receives.
type eventCollector struct {
	mu     sync.Mutex
	events []reload.Event
}

func (c *eventCollector) sink(e reload.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return true
}

func (c *eventCollector) snapshot() []reload.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]reload.Event, len(c.events))
	copy(out, c.events)
	return out
}

// waitFor polls until pred over the collected events holds.
func (c *eventCollector) waitFor(t *testing.T, pred func([]reload.Event) bool) []reload.Event {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		events := c.snapshot()
		if pred(events) {
			return events
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition never held; events: %v", c.snapshot())
	return nil
}

func TestIsRuleFile(t *testing.T) {
	assert.True(t, IsRuleFile("rules/cart.rlz"))
	assert.True(t, IsRuleFile("CART.RLZ"))
	assert.False(t, IsRuleFile("rules/cart.rlz.swp"))
	assert.False(t, IsRuleFile("notes.txt"))
	assert.False(t, IsRuleFile("rlz"))
}

func TestWatcher_WriteEmitsEvent(t *testing.T) {
	dir := t.TempDir()
	col := &eventCollector{}

	w, err := New(50*time.Millisecond, col.sink, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	path := filepath.Join(dir, "cart.rlz")
	require.NoError(t, os.WriteFile(path, []byte("pkg shop.cart;\n"), 0o644))

	events := col.waitFor(t, func(events []reload.Event) bool {
		for _, e := range events {
			if e.Path == path && e.Type == reload.EventWrite {
				return true
			}
		}
		return false
	})
	assert.NotEmpty(t, events)
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	col := &eventCollector{}

	w, err := New(50*time.Millisecond, col.sink, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	wanted := filepath.Join(dir, "ok.rlz")
	require.NoError(t, os.WriteFile(wanted, []byte("pkg ok;\n"), 0o644))

	events := col.waitFor(t, func(events []reload.Event) bool {
		return len(events) > 0
	})
	for _, e := range events {
		assert.Equal(t, wanted, e.Path, "only rule files should pass the filter")
	}
}

func TestWatcher_DebounceCoalesces(t *testing.T) {
	dir := t.TempDir()
	col := &eventCollector{}

	w, err := New(200*time.Millisecond, col.sink, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	path := filepath.Join(dir, "busy.rlz")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("pkg busy;\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	col.waitFor(t, func(events []reload.Event) bool {
		return len(events) >= 1
	})

	// Give a full extra window for any spurious second flush.
	time.Sleep(400 * time.Millisecond)
	events := col.snapshot()
	assert.Len(t, events, 1, "bursts within the window should coalesce to one event")
	assert.Equal(t, reload.EventWrite, events[0].Type)
}

func TestWatcher_RemoveAfterWriteWins(t *testing.T) {
	dir := t.TempDir()
	col := &eventCollector{}

	w, err := New(200*time.Millisecond, col.sink, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	path := filepath.Join(dir, "fleeting.rlz")
	require.NoError(t, os.WriteFile(path, []byte("pkg x;\n"), 0o644))
	require.NoError(t, os.Remove(path))

	events := col.waitFor(t, func(events []reload.Event) bool {
		return len(events) >= 1
	})
	last := events[len(events)-1]
	assert.Equal(t, reload.EventRemove, last.Type, "the last event in a window wins")
}

func TestWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	col := &eventCollector{}

	w, err := New(50*time.Millisecond, col.sink, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sub := filepath.Join(dir, "more")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a beat to register the new directory.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "deep.rlz")
	require.NoError(t, os.WriteFile(path, []byte("pkg deep;\n"), 0o644))

	col.waitFor(t, func(events []reload.Event) bool {
		for _, e := range events {
			if e.Path == path {
				return true
			}
		}
		return false
	})
}
