package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gqlbridge/pkg/localstore"
	"github.com/aussiebroadwan/gqlbridge/pkg/localstore/sqlite"
)

func newStore(t *testing.T, dsn string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, ":memory:")

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, localstore.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))
	require.NoError(t, s.Set(ctx, "a", "x"))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "k"}, keys)

	require.NoError(t, s.Remove(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, localstore.ErrNotFound)
	require.NoError(t, s.Ping(ctx))
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "local.db")

	first, err := sqlite.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "apollo-default.token", "abc"))
	require.NoError(t, first.Close())

	// Re-applying migrations on an up-to-date schema is a no-op.
	second := newStore(t, dsn)
	v, err := second.Get(ctx, "apollo-default.token")
	require.NoError(t, err)
	require.Equal(t, "abc", v)
}
