package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/stretchr/testify/require"
)

func TestNewAndLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	locker := NewLocker(client)
	lock, err := locker.Obtain(ctx, "jobs:test:lock", time.Minute, nil)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, "jobs:test:lock", time.Minute, nil)
	require.ErrorIs(t, err, redislock.ErrNotObtained)
	require.NoError(t, lock.Release(ctx))
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Options{Addr: addr})
	require.Error(t, err)
}
