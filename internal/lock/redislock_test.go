package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vaxcart-api/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialisesSameKey(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		active int
		peak   int
		wg     sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, "cart:abc", time.Second, func(context.Context) error {
				mu.Lock()
				active++
				if active > peak {
					peak = active
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, peak)
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), "cart:x", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("lock:cart:x"))
}

func TestWithLockGivesUpAfterMaxWait(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("lock:cart:busy", "someone-else"))
	locker.MaxWait = 30 * time.Millisecond

	err := locker.WithLock(context.Background(), "cart:busy", time.Second, func(context.Context) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)

	got, _ := mr.Get("lock:cart:busy")
	require.Equal(t, "someone-else", got)
}

func TestWithLockRenewsLeaseWhileWorking(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	err := locker.WithLock(ctx, "cart:slow", 90*time.Millisecond, func(context.Context) error {
		// three times past the original ttl in total
		for i := 0; i < 3; i++ {
			mr.FastForward(60 * time.Millisecond)
			require.Eventually(t, func() bool {
				return mr.TTL("lock:cart:slow") > 60*time.Millisecond
			}, time.Second, 5*time.Millisecond)
		}
		require.True(t, mr.Exists("lock:cart:slow"))
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("lock:cart:slow"))
}
