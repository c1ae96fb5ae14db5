//go:build integration

package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/platform/kv"
	"study_sync/internal/platform/testinfra"

	"github.com/rs/zerolog"
)

func TestLockerSingleRun(t *testing.T) {
	rdb := testinfra.StartRedis(t)
	locker := kv.NewLocker(rdb, zerolog.Nop())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "submissions", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := locker.Acquire(ctx, "submissions", time.Minute); !errors.Is(err, common.ErrLockHeld) {
		t.Errorf("second acquire: err = %v, want ErrLockHeld", err)
	}
	if rel, err := locker.Acquire(ctx, "catalog", time.Minute); err != nil {
		t.Errorf("other job should not be blocked: %v", err)
	} else {
		rel()
	}

	release()
	again, err := locker.Acquire(ctx, "submissions", time.Minute)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestLockerHeldPastTTL(t *testing.T) {
	rdb := testinfra.StartRedis(t)
	locker := kv.NewLocker(rdb, zerolog.Nop())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "catalog", 300*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Second)

	if _, err := locker.Acquire(ctx, "catalog", time.Minute); !errors.Is(err, common.ErrLockHeld) {
		t.Fatalf("lock held by a live run expired: err = %v, want ErrLockHeld", err)
	}

	release()
	again, err := locker.Acquire(ctx, "catalog", time.Minute)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestLockerExtendChecksToken(t *testing.T) {
	rdb := testinfra.StartRedis(t)
	locker := kv.NewLocker(rdb, zerolog.Nop())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "submissions", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	held, err := locker.Extend(ctx, "submissions", "not-the-holder", time.Minute)
	if err != nil || held {
		t.Errorf("Extend with a foreign token = %v, %v; want false", held, err)
	}
	held, err = locker.Extend(ctx, "idle-job", "any", time.Minute)
	if err != nil || held {
		t.Errorf("Extend on a free job = %v, %v; want false", held, err)
	}
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	rdb := testinfra.StartRedis(t)
	locker := kv.NewLocker(rdb, zerolog.Nop())
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "catalog", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	// Simulates the key expiring while its holder was stalled.
	if err := rdb.Del(ctx, "studysync:lock:catalog").Err(); err != nil {
		t.Fatal(err)
	}

	current, err := locker.Acquire(ctx, "catalog", time.Minute)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	defer current()

	stale()
	if _, err := locker.Acquire(ctx, "catalog", time.Minute); !errors.Is(err, common.ErrLockHeld) {
		t.Errorf("stale release dropped the current holder's lock: %v", err)
	}
}

func TestCursorStoreOnlyMovesForward(t *testing.T) {
	rdb := testinfra.StartRedis(t)
	cursor := kv.NewCursorStore(rdb)
	ctx := context.Background()

	mark, err := cursor.HighWaterMark(ctx, "celana")
	if err != nil || !mark.IsZero() {
		t.Fatalf("initial mark = %v, %v", mark, err)
	}

	newer := time.Unix(1700000200, 0).UTC()
	older := time.Unix(1700000100, 0).UTC()
	if err := cursor.Advance(ctx, "celana", newer); err != nil {
		t.Fatal(err)
	}
	if err := cursor.Advance(ctx, "celana", older); err != nil {
		t.Fatal(err)
	}

	mark, err = cursor.HighWaterMark(ctx, "celana")
	if err != nil || !mark.Equal(newer) {
		t.Errorf("mark = %v, %v; want %v", mark, err, newer)
	}
}
