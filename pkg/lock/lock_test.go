package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/crewdesk/automation/pkg/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, locker lock.Locker, expire func(time.Duration)) {
	t.Helper()

	ctx := context.Background()

	ok, err := locker.TryLock(ctx, "wf-1:job-1:completed", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.TryLock(ctx, "wf-1:job-1:completed", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a held lock")

	err = locker.Unlock(ctx, "wf-1:job-1:completed", "worker-b")
	assert.ErrorIs(t, err, lock.ErrLockBelongsToOthers)

	require.NoError(t, locker.Unlock(ctx, "wf-1:job-1:completed", "worker-a"))

	err = locker.Unlock(ctx, "wf-1:job-1:completed", "worker-a")
	assert.ErrorIs(t, err, lock.ErrLockDoesNotExist)

	ok, err = locker.TryLock(ctx, "wf-2:job-1:completed", "worker-a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	expire(2 * time.Second)

	ok, err = locker.TryLock(ctx, "wf-2:job-1:completed", "worker-b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be taken over")
}

func TestRedisLocker(t *testing.T) {
	server := miniredis.RunT(t)

	locker, err := lock.NewRedisLocker(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)

	defer func() { _ = locker.Close() }()

	exerciseLocker(t, locker, server.FastForward)
}

func TestNewRedisLocker_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := lock.NewRedisLocker(ctx, "redis://127.0.0.1:1")
	assert.Error(t, err)

	_, err = lock.NewRedisLocker(ctx, "not a url")
	assert.Error(t, err)
}

func TestLocalLocker(t *testing.T) {
	locker := lock.NewLocalLocker()
	clock := time.Now()

	lock.SetClock(locker, func() time.Time { return clock })

	exerciseLocker(t, locker, func(d time.Duration) { clock = clock.Add(d) })
}
