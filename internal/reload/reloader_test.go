package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavignes/roolz/internal/registry"
)

func openTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// waitForSource polls the registry until the path appears or the deadline
// passes.
func waitForSource(t *testing.T, reg *registry.Registry, path string) *registry.Source {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		src, err := reg.Get(context.Background(), path)
		require.NoError(t, err)
		if src != nil {
			return src
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("source %s never appeared in registry", path)
	return nil
}

func TestReloader_ParsesAndRecords(t *testing.T) {
	reg := openTestRegistry(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "good.rlz", "pkg shop.cart;\n")
	bad := writeFile(t, dir, "bad.rlz", "pkg 1bad;\n")

	r := New(reg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.True(t, r.Enqueue(Event{Type: EventWrite, Path: good}))
	require.True(t, r.Enqueue(Event{Type: EventWrite, Path: bad}))

	goodSrc := waitForSource(t, reg, good)
	assert.True(t, goodSrc.OK)
	assert.Equal(t, "shop.cart", goodSrc.Package)

	badSrc := waitForSource(t, reg, bad)
	assert.False(t, badSrc.OK)
	assert.Contains(t, badSrc.ErrorText, "expecting identifier")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReloader_RemoveDropsSource(t *testing.T) {
	reg := openTestRegistry(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "gone.rlz", "pkg a;\n")

	r := New(reg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	r.Enqueue(Event{Type: EventWrite, Path: path})
	waitForSource(t, reg, path)

	r.Enqueue(Event{Type: EventRemove, Path: path})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		src, err := reg.Get(context.Background(), path)
		require.NoError(t, err)
		if src == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("removed source still present in registry")
}

func TestReloader_MissingFileIsNotFatal(t *testing.T) {
	reg := openTestRegistry(t)
	dir := t.TempDir()
	missing := filepath.Join(dir, "never.rlz")
	path := writeFile(t, dir, "after.rlz", "pkg ok;\n")

	r := New(reg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	// A write event for a vanished file is logged and skipped; the loop
	// keeps processing.
	r.Enqueue(Event{Type: EventWrite, Path: missing})
	r.Enqueue(Event{Type: EventWrite, Path: path})

	src := waitForSource(t, reg, path)
	assert.True(t, src.OK)

	got, err := reg.Get(context.Background(), missing)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReloader_EnqueueAfterShutdown(t *testing.T) {
	reg := openTestRegistry(t)
	r := New(reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	<-done

	assert.False(t, r.Enqueue(Event{Type: EventWrite, Path: "late.rlz"}))
}
