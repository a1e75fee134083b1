package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// accountLocker 提供 per-account 的互斥鎖
//
// 不同帳戶的操作可以完全平行，同一個帳戶的 read-modify-write 會被序列化
// 鎖本體是容量 1 的 channel，這樣等待時可以同時監聽 ctx 取消與超時，
// sync.Mutex 做不到有界等待
type accountLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	// 等待上限，超過回 ErrBusy 而不是無限期掛住
	wait time.Duration
}

func newAccountLocker(wait time.Duration) *accountLocker {
	return &accountLocker{
		locks: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (l *accountLocker) get(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[id] = ch
	}
	return ch
}

// Lock 取得單一帳戶的互斥權
// ctx 先取消就放棄嘗試 (不會有任何副作用)，等超過 wait 回 ErrBusy
func (l *accountLocker) Lock(ctx context.Context, id string) error {
	ch := l.get(id)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return domain.ErrBusy
	}
}

// Unlock 釋放帳戶的互斥權，所有出口路徑 (包含失敗) 都必須呼叫
func (l *accountLocker) Unlock(id string) {
	<-l.get(id)
}

// LockAll 依呼叫端給定的順序逐一取鎖
// ids 必須已經照全域固定順序排好 (domain.LockOrder)，才能保證不死鎖
// 任一把沒拿到就反向釋放已取得的鎖
func (l *accountLocker) LockAll(ctx context.Context, ids []string) error {
	for i, id := range ids {
		if err := l.Lock(ctx, id); err != nil {
			for j := i - 1; j >= 0; j-- {
				l.Unlock(ids[j])
			}
			return err
		}
	}
	return nil
}

// UnlockAll 釋放 LockAll 取得的所有鎖
func (l *accountLocker) UnlockAll(ids []string) {
	for i := len(ids) - 1; i >= 0; i-- {
		l.Unlock(ids[i])
	}
}
