package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestLockBusyAfterWait(t *testing.T) {
	locker := newAccountLocker(30 * time.Millisecond)
	ctx := context.Background()

	if err := locker.Lock(ctx, "acc-1"); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	start := time.Now()
	err := locker.Lock(ctx, "acc-1")
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatal("returned before the wait bound elapsed")
	}

	locker.Unlock("acc-1")
	if err := locker.Lock(ctx, "acc-1"); err != nil {
		t.Fatalf("lock after unlock: %v", err)
	}
}

func TestLockContextCancelled(t *testing.T) {
	locker := newAccountLocker(time.Second)

	if err := locker.Lock(context.Background(), "acc-1"); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := locker.Lock(ctx, "acc-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

// 多鎖取得中途失敗時，已取得的要全數釋放
func TestLockAllReleasesOnFailure(t *testing.T) {
	locker := newAccountLocker(20 * time.Millisecond)
	ctx := context.Background()

	if err := locker.Lock(ctx, "acc-b"); err != nil {
		t.Fatalf("hold b: %v", err)
	}

	err := locker.LockAll(ctx, []string{"acc-a", "acc-b"})
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}

	// acc-a 必須已被釋放，馬上可再取得
	if err := locker.Lock(ctx, "acc-a"); err != nil {
		t.Fatalf("acc-a should be free: %v", err)
	}
}

func TestLockAllAndUnlockAll(t *testing.T) {
	locker := newAccountLocker(20 * time.Millisecond)
	ctx := context.Background()
	ids := []string{"acc-a", "acc-b"}

	if err := locker.LockAll(ctx, ids); err != nil {
		t.Fatalf("LockAll: %v", err)
	}
	locker.UnlockAll(ids)
	if err := locker.LockAll(ctx, ids); err != nil {
		t.Fatalf("LockAll after UnlockAll: %v", err)
	}
	locker.UnlockAll(ids)
}
