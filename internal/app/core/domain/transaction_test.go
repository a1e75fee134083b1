package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLockOrder(t *testing.T) {
	// 不論傳入順序，回傳順序固定
	ab := LockOrder("acc-a", "acc-b")
	ba := LockOrder("acc-b", "acc-a")
	if ab[0] != "acc-a" || ab[1] != "acc-b" {
		t.Fatalf("LockOrder(a,b) = %v", ab)
	}
	if ba[0] != "acc-a" || ba[1] != "acc-b" {
		t.Fatalf("LockOrder(b,a) = %v", ba)
	}
}

func TestTransactionLockIDs(t *testing.T) {
	transfer := NewTransaction(uuid.New(), KindTransfer, "acc-b", "acc-a", d(10), time.Now())
	ids := transfer.LockIDs()
	if len(ids) != 2 || ids[0] != "acc-a" || ids[1] != "acc-b" {
		t.Fatalf("transfer LockIDs = %v", ids)
	}

	deposit := NewTransaction(uuid.New(), KindDeposit, "acc-x", "", d(10), time.Now())
	ids = deposit.LockIDs()
	if len(ids) != 1 || ids[0] != "acc-x" {
		t.Fatalf("deposit LockIDs = %v", ids)
	}
}

func TestNewTransactionAssignsID(t *testing.T) {
	a := NewTransaction(uuid.New(), KindDeposit, "acc", "", d(1), time.Now())
	b := NewTransaction(uuid.New(), KindDeposit, "acc", "", d(1), time.Now())
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("transaction ids should be unique and non-empty: %q %q", a.ID, b.ID)
	}
}

func TestClockMonotonic(t *testing.T) {
	clock := NewClock()
	last := clock.Now()
	for i := 0; i < 10000; i++ {
		now := clock.Now()
		if now.Before(last) {
			t.Fatalf("clock went backwards: %v < %v", now, last)
		}
		last = now
	}
}

func TestAccountSnapshotIsolated(t *testing.T) {
	account := NewAccount("acc-1", "user-1", time.Now())
	account.TransactionIDs = append(account.TransactionIDs, "t1")

	snapshot := account.Snapshot()
	snapshot.TransactionIDs[0] = "changed"
	snapshot.Balance = d(999)

	if account.TransactionIDs[0] != "t1" {
		t.Fatal("snapshot shares TransactionIDs backing array")
	}
	if !account.Balance.IsZero() {
		t.Fatal("snapshot mutation leaked into account")
	}
}
