package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Transfer 轉帳協調器，整個系統最敏感的一段
//
// 規則:
//  1. 雙鎖依 domain.LockOrder 的固定全域順序取得，與轉帳方向無關，
//     A->B 與 B->A 同時進來也不會互相等待
//  2. 不變量檢查看轉出方的 balance + credit
//  3. 扣款、入帳、交易紀錄三個效果夾在 WAL begin/commit 之間，
//     任何一步失敗就反向撤銷已套用的效果，對外永遠是全有或全無
func (m *MutexLedger) Transfer(ctx context.Context, ref uuid.UUID, sourceID, destinationID string, amount decimal.Decimal) (*domain.TransferResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if sourceID == destinationID {
		return nil, domain.ErrSameAccount
	}

	lockIDs := domain.LockOrder(sourceID, destinationID)
	if err := m.locker.LockAll(ctx, lockIDs); err != nil {
		return nil, err
	}
	defer m.locker.UnlockAll(lockIDs)

	if result, ok := m.replayTransfer(ref); ok {
		return result, nil
	}

	source, err := m.store.Get(sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceAccountNotFound, sourceID)
	}
	if _, err := m.store.Get(destinationID); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDestinationAccountNotFound, destinationID)
	}
	// 鎖內、變更前判定，失敗保證零副作用
	if err := domain.CheckBalanceDelta(source.Balance, source.Credit, amount.Neg()); err != nil {
		return nil, err
	}

	tran := domain.NewTransaction(ref, domain.KindTransfer, sourceID, destinationID, amount, m.clock.Now())

	seq := m.nextSeq()
	if err := m.walWrite(walEntry{Seq: seq, Stage: walStageBegin, Op: walOpTransaction, Transaction: tran}); err != nil {
		return nil, err
	}

	// 扣款
	updatedSource, err := m.updateWithRetry(sourceID, func(a *domain.Account) error {
		if err := domain.CheckBalanceDelta(a.Balance, a.Credit, amount.Neg()); err != nil {
			return err
		}
		a.Balance = a.Balance.Sub(amount)
		a.TransactionIDs = append(a.TransactionIDs, tran.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 入帳；失敗時撤銷剛才的扣款
	updatedDestination, err := m.updateWithRetry(destinationID, func(a *domain.Account) error {
		a.Balance = a.Balance.Add(amount)
		a.TransactionIDs = append(a.TransactionIDs, tran.ID)
		return nil
	})
	if err != nil {
		m.revertMoney(sourceID, amount, tran.ID)
		return nil, err
	}

	m.log.Append(tran)

	if err := m.walWrite(walEntry{Seq: seq, Stage: walStageCommit}); err != nil {
		// 補償: 兩邊都撤銷，錢不會消失也不會多出來
		m.log.Remove(tran.ID)
		m.revertMoney(destinationID, amount.Neg(), tran.ID)
		m.revertMoney(sourceID, amount, tran.ID)
		return nil, err
	}

	m.markProcessed(ref, replayRef{
		kind:          domain.KindTransfer,
		tranID:        tran.ID,
		sourceID:      sourceID,
		destinationID: destinationID,
	})

	return &domain.TransferResult{
		Source:      updatedSource,
		Destination: updatedDestination,
		Transaction: tran,
	}, nil
}
