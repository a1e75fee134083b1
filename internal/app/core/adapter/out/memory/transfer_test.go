package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// 規格場景: A {balance: 30, credit: 30} 轉 50 給 B
func TestTransferIntoCredit(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	source := mustCreate(t, ledger, "alice")
	destination := mustCreate(t, ledger, "bob")
	mustDeposit(t, ledger, "alice", source.ID, 30)
	if _, err := ledger.AdjustCredit(ctx, "alice", source.ID, d(30)); err != nil {
		t.Fatalf("AdjustCredit: %v", err)
	}

	result, err := ledger.Transfer(ctx, uuid.New(), source.ID, destination.ID, d(50))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if !result.Source.Balance.Equal(d(-20)) || !result.Source.Credit.Equal(d(30)) {
		t.Fatalf("source after transfer: balance=%s credit=%s, want -20/30", result.Source.Balance, result.Source.Credit)
	}
	if !result.Destination.Balance.Equal(d(50)) {
		t.Fatalf("destination balance = %s, want 50", result.Destination.Balance)
	}
	if result.Transaction.Kind != domain.KindTransfer || !result.Transaction.Amount.Equal(d(50)) {
		t.Fatalf("unexpected transaction: %+v", result.Transaction)
	}
}

// 同一筆轉帳紀錄要能從兩邊的歷史查到
func TestTransferVisibleFromBothSides(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	source := mustCreate(t, ledger, "alice")
	destination := mustCreate(t, ledger, "bob")
	mustDeposit(t, ledger, "alice", source.ID, 100)

	result, err := ledger.Transfer(ctx, uuid.New(), source.ID, destination.ID, d(40))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	for _, accountID := range []string{source.ID, destination.ID} {
		transactions, err := ledger.ListTransactions(ctx, accountID)
		if err != nil {
			t.Fatalf("ListTransactions(%s): %v", accountID, err)
		}
		found := false
		for _, tran := range transactions {
			if tran.ID == result.Transaction.ID {
				found = true
			}
		}
		if !found {
			t.Fatalf("transfer %s not visible from account %s", result.Transaction.ID, accountID)
		}
	}
}

func TestTransferRejections(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	source := mustCreate(t, ledger, "alice")
	destination := mustCreate(t, ledger, "bob")
	mustDeposit(t, ledger, "alice", source.ID, 10)

	if _, err := ledger.Transfer(ctx, uuid.New(), source.ID, source.ID, d(5)); !errors.Is(err, domain.ErrSameAccount) {
		t.Fatalf("self transfer: want ErrSameAccount, got %v", err)
	}
	if _, err := ledger.Transfer(ctx, uuid.New(), source.ID, destination.ID, d(0)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("zero amount: want ErrInvalidAmount, got %v", err)
	}
	if _, err := ledger.Transfer(ctx, uuid.New(), "missing", destination.ID, d(5)); !errors.Is(err, domain.ErrSourceAccountNotFound) {
		t.Fatalf("missing source: want ErrSourceAccountNotFound, got %v", err)
	}
	if _, err := ledger.Transfer(ctx, uuid.New(), source.ID, "missing", d(5)); !errors.Is(err, domain.ErrDestinationAccountNotFound) {
		t.Fatalf("missing destination: want ErrDestinationAccountNotFound, got %v", err)
	}

	// 餘額不足: 兩邊都不能動，也不能留下紀錄
	if _, err := ledger.Transfer(ctx, uuid.New(), source.ID, destination.ID, d(100)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	sourceAfter, _ := ledger.GetAccount(ctx, source.ID)
	destinationAfter, _ := ledger.GetAccount(ctx, destination.ID)
	if !sourceAfter.Balance.Equal(d(10)) || !destinationAfter.Balance.IsZero() {
		t.Fatalf("failed transfer moved money: source=%s destination=%s", sourceAfter.Balance, destinationAfter.Balance)
	}
	if transactions, _ := ledger.ListTransactions(ctx, source.ID); len(transactions) != 1 {
		t.Fatalf("failed transfer left records: %d", len(transactions))
	}
}

func TestTransferIdempotentReplay(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	source := mustCreate(t, ledger, "alice")
	destination := mustCreate(t, ledger, "bob")
	mustDeposit(t, ledger, "alice", source.ID, 100)

	ref := uuid.New()
	first, err := ledger.Transfer(ctx, ref, source.ID, destination.ID, d(30))
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	replayed, err := ledger.Transfer(ctx, ref, source.ID, destination.ID, d(30))
	if err != nil {
		t.Fatalf("replayed transfer: %v", err)
	}
	if !replayed.Source.Balance.Equal(d(70)) || !replayed.Destination.Balance.Equal(d(30)) {
		t.Fatalf("replay applied twice: source=%s destination=%s", replayed.Source.Balance, replayed.Destination.Balance)
	}
	if replayed.Transaction.ID != first.Transaction.ID {
		t.Fatal("replay should return the original transaction")
	}
}

// 兩帳戶互轉打滿併發，結束後總額不變且不會卡死
func TestTransferOppositeDirectionsNoDeadlock(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	a := mustCreate(t, ledger, "alice")
	b := mustCreate(t, ledger, "bob")
	mustDeposit(t, ledger, "alice", a.ID, 1000)
	mustDeposit(t, ledger, "bob", b.ID, 1000)

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := ledger.Transfer(ctx, uuid.New(), a.ID, b.ID, d(1)); err != nil {
				t.Errorf("a->b: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := ledger.Transfer(ctx, uuid.New(), b.ID, a.ID, d(1)); err != nil {
				t.Errorf("b->a: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	assertTotal(t, ledger, d(2000))
}

// 多帳戶隨機互轉，驗證守恆: 轉帳不增減系統總額
func TestTransferConservation(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	ids := make([]string, 4)
	for i := range ids {
		account := mustCreate(t, ledger, "user")
		mustDeposit(t, ledger, "user", account.ID, 1000)
		ids[i] = account.ID
	}

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				from := ids[(w+i)%len(ids)]
				to := ids[(w+i+1)%len(ids)]
				_, err := ledger.Transfer(ctx, uuid.New(), from, to, d(int64(i%7+1)))
				if err != nil && !errors.Is(err, domain.ErrInsufficientFunds) && !errors.Is(err, domain.ErrBusy) {
					t.Errorf("transfer: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	assertTotal(t, ledger, d(4000))
}

func assertTotal(t *testing.T, ledger *MutexLedger, want decimal.Decimal) {
	t.Helper()
	accounts, err := ledger.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	total := decimal.Zero
	for _, account := range accounts {
		total = total.Add(account.Balance)
	}
	if !total.Equal(want) {
		t.Fatalf("total balance = %s, want %s", total, want)
	}
}
