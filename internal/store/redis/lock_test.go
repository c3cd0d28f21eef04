package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degendice/backend/internal/domain"
)

func newTestLockManager(t *testing.T) (*LockManager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := New(context.Background(), ClientConfig{
		Addr:     mr.Addr(),
		PoolSize: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewLockManager(client), mr
}

func TestLockAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	lm, _ := newTestLockManager(t)

	unlock, err := lm.Acquire(ctx, "round:advance", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "round:advance", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()

	unlock2, err := lm.Acquire(ctx, "round:advance", time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestLockUnlockIdempotent(t *testing.T) {
	ctx := context.Background()
	lm, _ := newTestLockManager(t)

	unlock, err := lm.Acquire(ctx, "round:advance", time.Minute)
	require.NoError(t, err)
	unlock()
	unlock() // second call is a no-op

	_, err = lm.Acquire(ctx, "round:advance", time.Minute)
	assert.NoError(t, err)
}

func TestLockExpiresByTTL(t *testing.T) {
	ctx := context.Background()
	lm, mr := newTestLockManager(t)

	_, err := lm.Acquire(ctx, "round:advance", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock, err := lm.Acquire(ctx, "round:advance", time.Minute)
	require.NoError(t, err, "an expired lock is acquirable again")
	unlock()
}
