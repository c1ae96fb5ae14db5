package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "studysync:"

func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Extends the key's TTL only if it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("pexpire", KEYS[1], ARGV[2])
else
    return 0
end
`)

// Locker guards a job so only one run executes at a time across processes.
// A held lock is renewed in the background until released, so runs longer
// than the TTL stay exclusive; the TTL only bounds how long a crashed holder
// blocks the job.
type Locker struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewLocker(rdb *redis.Client, log zerolog.Logger) *Locker {
	return &Locker{rdb: rdb, log: log.With().Str("component", "locker").Logger()}
}

func lockKey(job string) string {
	return keyPrefix + "lock:" + job
}

// Acquire takes the lock for job, or returns common.ErrLockHeld. The returned
// release func must be called when the run ends.
func (l *Locker) Acquire(ctx context.Context, job string, ttl time.Duration) (func(), error) {
	key := lockKey(job)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("job %s: %w", job, common.ErrLockHeld)
	}

	hbCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.heartbeat(hbCtx, job, token, ttl)
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			stop()
			<-done
			// The run context may already be cancelled; release on a fresh one.
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, l.rdb, []string{key}, token).Err(); err != nil {
				l.log.Warn().Err(err).Str("event", "lock").Str("item", job).Str("outcome", "release_failed").
					Msg("could not release run lock; it expires with its ttl")
			}
		})
	}
	return release, nil
}

// Extend resets the TTL of a lock still held under token. It reports false
// when the lock expired or belongs to another holder.
func (l *Locker) Extend(ctx context.Context, job, token string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, l.rdb, []string{lockKey(job)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend lock %s: %w", job, err)
	}
	return n == 1, nil
}

// heartbeat renews the lock at a third of its TTL until ctx ends or the lock
// is lost. A failed renewal is retried on the next tick.
func (l *Locker) heartbeat(ctx context.Context, job, token string, ttl time.Duration) {
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := l.Extend(ctx, job, token, ttl)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.log.Warn().Err(err).Str("event", "lock").Str("item", job).Str("outcome", "renew_failed").Msg("could not renew run lock")
				continue
			}
			if !held {
				l.log.Error().Str("event", "lock").Str("item", job).Str("outcome", "lost").Msg("run lock expired before renewal")
				return
			}
		}
	}
}

// CursorStore keeps the newest reconciled submission time per remote user.
type CursorStore struct {
	rdb *redis.Client
}

func NewCursorStore(rdb *redis.Client) *CursorStore {
	return &CursorStore{rdb: rdb}
}

func cursorKey(remoteUsername string) string {
	return keyPrefix + "hwm:" + remoteUsername
}

// HighWaterMark returns the zero time when nothing was recorded yet.
func (c *CursorStore) HighWaterMark(ctx context.Context, remoteUsername string) (time.Time, error) {
	val, err := c.rdb.Get(ctx, cursorKey(remoteUsername)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read high-water mark: %w", err)
	}
	secs, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse high-water mark %q: %w", val, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call("get", KEYS[1]) or "0")
if tonumber(ARGV[1]) > cur then
    redis.call("set", KEYS[1], ARGV[1])
    return 1
end
return 0
`)

// Advance moves the mark forward; older values are ignored.
func (c *CursorStore) Advance(ctx context.Context, remoteUsername string, t time.Time) error {
	if err := advanceScript.Run(ctx, c.rdb, []string{cursorKey(remoteUsername)}, t.Unix()).Err(); err != nil {
		return fmt.Errorf("advance high-water mark: %w", err)
	}
	return nil
}
