package localstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gqlbridge/pkg/localstore"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	s := localstore.NewMemory()

	_, err := s.Get(ctx, "apollo-default.token")
	require.ErrorIs(t, err, localstore.ErrNotFound)

	require.NoError(t, s.Set(ctx, "apollo-default.token", "abc"))
	v, err := s.Get(ctx, "apollo-default.token")
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	require.NoError(t, s.Set(ctx, "apollo-default.token", "def"))
	v, ok, err := localstore.Lookup(ctx, s, "apollo-default.token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "def", v)

	require.NoError(t, s.Remove(ctx, "apollo-default.token"))
	require.NoError(t, s.Remove(ctx, "apollo-default.token"))

	_, ok, err = localstore.Lookup(ctx, s, "apollo-default.token")
	require.NoError(t, err)
	require.False(t, ok)
}
