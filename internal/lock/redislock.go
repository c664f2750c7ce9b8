package lock

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// ErrLockLost is returned when the lock expired or was taken over while fn ran.
var ErrLockLost = errors.New("lock: lost while held")

// Locker serializes work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

var renewScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)

// Redis provides a Redis-backed distributed lock. While fn runs the lock is
// renewed every ttl/3; if renewal finds the lock gone, fn's context is cancelled.
type Redis struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// WithLock executes fn while holding a lock for the provided key. The lock is
// released even if fn returns an error. When the lock cannot be acquired before
// the context is cancelled the context error is returned.
func (l Redis) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := ulid.Make().String()
	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer func() { _ = releaseScript.Run(context.Background(), l.R, []string{key}, token).Err() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	lost := make(chan struct{})
	done := make(chan struct{})
	go l.renew(runCtx, cancel, key, token, ttl, lost, done)

	err := fn(runCtx)
	cancel()
	<-done
	select {
	case <-lost:
		return errors.Join(ErrLockLost, err)
	default:
		return err
	}
}

func (l Redis) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// renew extends the lock until ctx ends. When the token no longer matches it
// closes lost and cancels ctx.
func (l Redis) renew(ctx context.Context, cancel context.CancelFunc, key, token string, ttl time.Duration, lost, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.R, []string{key}, token, ttl.Milliseconds()).Int()
			if ctx.Err() != nil {
				return
			}
			if err == nil && n == 0 {
				close(lost)
				cancel()
				return
			}
		}
	}
}
