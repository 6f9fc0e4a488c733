package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestRegistry_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	reg, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	reg, err = Open(path)
	require.NoError(t, err)
	defer reg.Close()

	sources, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestRegistry_RecordSuccess(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	src, err := reg.Record(ctx, "rules/cart.rlz", "shop.cart", nil)
	require.NoError(t, err)
	assert.True(t, src.OK)
	assert.Equal(t, "shop.cart", src.Package)
	assert.Equal(t, int64(1), src.Seq)

	got, err := reg.Get(ctx, "rules/cart.rlz")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, src, *got)
}

func TestRegistry_RecordFailureClearsPackage(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Record(ctx, "rules/bad.rlz", "shop.bad", nil)
	require.NoError(t, err)

	_, err = reg.Record(ctx, "rules/bad.rlz", "", errors.New("1:1: syntax: nope"))
	require.NoError(t, err)

	got, err := reg.Get(ctx, "rules/bad.rlz")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.OK)
	assert.Empty(t, got.Package)
	assert.Equal(t, "1:1: syntax: nope", got.ErrorText)
	assert.Equal(t, int64(2), got.Seq, "updates advance the logical clock")
}

func TestRegistry_GetUnknownPath(t *testing.T) {
	reg := openTestRegistry(t)

	got, err := reg.Get(context.Background(), "no/such.rlz")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistry_Delete(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Record(ctx, "rules/a.rlz", "a", nil)
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, "rules/a.rlz"))

	got, err := reg.Get(ctx, "rules/a.rlz")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is not an error.
	assert.NoError(t, reg.Delete(ctx, "rules/a.rlz"))
}

func TestRegistry_ListOrderedByPath(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	for _, path := range []string{"b.rlz", "a.rlz", "c.rlz"} {
		_, err := reg.Record(ctx, path, "x", nil)
		require.NoError(t, err)
	}

	sources, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "a.rlz", sources[0].Path)
	assert.Equal(t, "b.rlz", sources[1].Path)
	assert.Equal(t, "c.rlz", sources[2].Path)
}

func TestRegistry_ClockResumesAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	reg, err := Open(path)
	require.NoError(t, err)
	_, err = reg.Record(ctx, "a.rlz", "a", nil)
	require.NoError(t, err)
	_, err = reg.Record(ctx, "b.rlz", "b", nil)
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	reg, err = Open(path)
	require.NoError(t, err)
	defer reg.Close()

	src, err := reg.Record(ctx, "c.rlz", "c", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), src.Seq, "clock resumes past the highest stored seq")
}
