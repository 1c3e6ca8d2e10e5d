package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLockTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRunLockMutualExclusion(t *testing.T) {
	_, client := newLockTestClient(t)
	lock := NewRunLock(client, time.Minute)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "createfiles", 7)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "createfiles", 7)
	require.ErrorIs(t, err, ErrRunInProgress)

	// A different operation or tenant is independent.
	releaseOther, err := lock.Acquire(ctx, "transferfiles", 7)
	require.NoError(t, err)
	releaseOther(ctx)

	releaseTenant, err := lock.Acquire(ctx, "createfiles", 8)
	require.NoError(t, err)
	releaseTenant(ctx)

	release(ctx)

	release2, err := lock.Acquire(ctx, "createfiles", 7)
	require.NoError(t, err)
	release2(ctx)
}

func TestRunLockExpiresAfterMaxHold(t *testing.T) {
	mr, client := newLockTestClient(t)
	lock := NewRunLock(client, time.Minute)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "createfiles", 1)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	release, err := lock.Acquire(ctx, "createfiles", 1)
	require.NoError(t, err)
	release(ctx)
}

func TestRunLockReleaseIgnoresStolenLock(t *testing.T) {
	mr, client := newLockTestClient(t)
	lock := NewRunLock(client, time.Minute)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "createfiles", 1)
	require.NoError(t, err)

	// Simulate expiry plus re-acquisition by another instance.
	mr.FastForward(2 * time.Minute)
	_, err = lock.Acquire(ctx, "createfiles", 1)
	require.NoError(t, err)

	// Releasing the stale handle must not free the new holder's lock.
	release(ctx)
	_, err = lock.Acquire(ctx, "createfiles", 1)
	require.ErrorIs(t, err, ErrRunInProgress)
}
