package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stays held past MaxWait.
var ErrNotAcquired = errors.New("lock: not acquired")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

var extendScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)

// Locker serialises work on a key through a Redis SET NX lease.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock retries before giving up. Zero waits
	// until the context is done.
	MaxWait time.Duration
}

// WithLock runs fn while holding the lease for key. The lease is renewed every
// third of ttl for as long as fn runs, and released when fn returns if it is
// still owned by this call.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	waitCtx := ctx
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.MaxWait)
		defer cancel()
	}

	lockKey := "lock:" + key
	token := uuid.NewString()
	for {
		ok, err := l.R.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			defer releaseScript.Run(context.WithoutCancel(ctx), l.R, []string{lockKey}, token)
			stop := l.keepAlive(ctx, lockKey, token, ttl)
			defer stop()
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s: %w", key, ErrNotAcquired)
		case <-timer.C:
		}
	}
}

// keepAlive extends the lease until the returned stop func is called or the
// lease is lost to another owner.
func (l Locker) keepAlive(ctx context.Context, lockKey, token string, ttl time.Duration) func() {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		interval := ttl / 3
		if interval <= 0 {
			interval = ttl
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := extendScript.Run(ctx, l.R, []string{lockKey}, token, ttl.Milliseconds()).Int()
				if err != nil || n == 0 {
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
