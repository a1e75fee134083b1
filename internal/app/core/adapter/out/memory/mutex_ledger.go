package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// WriteAheadLog 是 MutexLedger 依賴的持久化介面 (pkg/wal 實作)
// 抽成介面讓測試可以注入會失敗的假 WAL，驗證補償路徑
type WriteAheadLog interface {
	Write(v any) error
	ReadAll(callback func(jsonRaw []byte) error) error
}

// WAL entry 的階段標記
// begin 先落盤、效果套用完再補 commit；重啟恢復只重放有 commit 的 entry，
// 這樣 crash 在兩者之間時等於整筆沒發生，不會出現只套用一半的狀態
const (
	walStageBegin  = "begin"
	walStageCommit = "commit"
)

const (
	walOpCreateAccount = "create_account"
	walOpTransaction   = "transaction"
	walOpAdjustCredit  = "adjust_credit"
)

type walEntry struct {
	Seq   uint64 `json:"seq"`
	Stage string `json:"stage"`
	// 以下只有 begin 會填
	Op          string              `json:"op,omitempty"`
	Account     *domain.Account     `json:"account,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	AccountID   string              `json:"accountId,omitempty"`
	Delta       *decimal.Decimal    `json:"delta,omitempty"`
}

// replayRef 記住一個 ref 處理過哪筆交易，重放時用目前狀態重建回覆
type replayRef struct {
	kind          domain.TransactionKind
	tranID        string
	sourceID      string
	destinationID string
}

// Options MutexLedger 的建構參數
type Options struct {
	// WAL 可為 nil (純 in-memory，不做持久化)
	WAL WriteAheadLog
	// LockWait 等待帳戶鎖的上限，0 用預設 3 秒
	LockWait time.Duration
	// Retries 樂觀鎖重試次數，0 用預設 3 次
	Retries int
	Clock   *domain.Clock
}

// MutexLedger 是 in-memory 帳本
//
// 併發紀律:
//
//	單帳戶操作對該帳戶取鎖，跨帳戶 (轉帳) 依 domain.LockOrder 取雙鎖
//	鎖內做 read -> 不變量檢查 -> WAL begin -> 套用 -> WAL commit
//	狀態相關的失敗 (餘額不足等) 都在任何變更之前判定
type MutexLedger struct {
	store  *accountStore
	log    *transactionLog
	locker *accountLocker
	wal    WriteAheadLog
	clock  *domain.Clock

	retries int
	seq     atomic.Uint64

	// 已處理過的 ref，重放不再套用
	pmu       sync.Mutex
	processed map[uuid.UUID]replayRef
}

// NewMutexLedger 建立 in-memory 帳本並從 WAL 恢復狀態
func NewMutexLedger(opts Options) (*MutexLedger, error) {
	if opts.LockWait <= 0 {
		opts.LockWait = 3 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Clock == nil {
		opts.Clock = domain.NewClock()
	}
	ledger := &MutexLedger{
		store:     newAccountStore(),
		log:       newTransactionLog(),
		locker:    newAccountLocker(opts.LockWait),
		wal:       opts.WAL,
		clock:     opts.Clock,
		retries:   opts.Retries,
		processed: make(map[uuid.UUID]replayRef),
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// CreateAccount 建立新帳戶 (零餘額、零信用額度)
func (m *MutexLedger) CreateAccount(ctx context.Context, ownerID string) (*domain.Account, error) {
	account := domain.NewAccount(uuid.NewString(), ownerID, m.clock.Now())

	seq := m.nextSeq()
	if err := m.walWrite(walEntry{Seq: seq, Stage: walStageBegin, Op: walOpCreateAccount, Account: account}); err != nil {
		return nil, err
	}
	if err := m.store.Put(account); err != nil {
		return nil, err
	}
	if err := m.walWrite(walEntry{Seq: seq, Stage: walStageCommit}); err != nil {
		m.store.Delete(account.ID)
		return nil, err
	}
	return account.Snapshot(), nil
}

// Deposit 存款
func (m *MutexLedger) Deposit(ctx context.Context, ref uuid.UUID, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := m.locker.Lock(ctx, accountID); err != nil {
		return nil, err
	}
	defer m.locker.Unlock(accountID)

	if snapshot, ok := m.replayAccount(ref); ok {
		return snapshot, nil
	}
	if _, err := m.getOwned(accountID, ownerID); err != nil {
		return nil, err
	}

	tran := domain.NewTransaction(ref, domain.KindDeposit, accountID, "", amount, m.clock.Now())
	return m.applyMoney(tran, accountID, amount)
}

// Withdraw 提款，可透支到信用額度為止
func (m *MutexLedger) Withdraw(ctx context.Context, ref uuid.UUID, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := m.locker.Lock(ctx, accountID); err != nil {
		return nil, err
	}
	defer m.locker.Unlock(accountID)

	if snapshot, ok := m.replayAccount(ref); ok {
		return snapshot, nil
	}
	account, err := m.getOwned(accountID, ownerID)
	if err != nil {
		return nil, err
	}
	// 鎖內、任何變更之前判定餘額不足，失敗保證零副作用
	if err := domain.CheckBalanceDelta(account.Balance, account.Credit, amount.Neg()); err != nil {
		return nil, err
	}

	tran := domain.NewTransaction(ref, domain.KindWithdrawal, accountID, "", amount, m.clock.Now())
	return m.applyMoney(tran, accountID, amount.Neg())
}

// applyMoney 套用單帳戶的金額變動: WAL begin -> 更新餘額與歷史 -> WAL commit
// commit 落盤失敗時撤銷剛套用的效果 (補償)，對外等於整筆沒發生
func (m *MutexLedger) applyMoney(tran *domain.Transaction, accountID string, delta decimal.Decimal) (*domain.Account, error) {
	seq := m.nextSeq()
	if err := m.walWrite(walEntry{Seq: seq, Stage: walStageBegin, Op: walOpTransaction, Transaction: tran}); err != nil {
		return nil, err
	}

	updated, err := m.updateWithRetry(accountID, func(a *domain.Account) error {
		if err := domain.CheckBalanceDelta(a.Balance, a.Credit, delta); err != nil {
			return err
		}
		a.Balance = a.Balance.Add(delta)
		a.TransactionIDs = append(a.TransactionIDs, tran.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Append(tran)

	if err := m.walWrite(walEntry{Seq: seq, Stage: walStageCommit}); err != nil {
		m.log.Remove(tran.ID)
		m.revertMoney(accountID, delta.Neg(), tran.ID)
		return nil, err
	}

	m.markProcessed(tran.RefID, replayRef{kind: tran.Kind, tranID: tran.ID, sourceID: accountID})
	return updated, nil
}

// AdjustCredit 調整信用額度
// 刻意不產生交易紀錄 (信用額度變動不是金流)，但仍寫 WAL 保住持久性
func (m *MutexLedger) AdjustCredit(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) (*domain.Account, error) {
	if err := m.locker.Lock(ctx, accountID); err != nil {
		return nil, err
	}
	defer m.locker.Unlock(accountID)

	account, err := m.getOwned(accountID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckCreditDelta(account.Credit, delta); err != nil {
		return nil, err
	}

	seq := m.nextSeq()
	if err := m.walWrite(walEntry{Seq: seq, Stage: walStageBegin, Op: walOpAdjustCredit, AccountID: accountID, Delta: &delta}); err != nil {
		return nil, err
	}

	updated, err := m.updateWithRetry(accountID, func(a *domain.Account) error {
		if err := domain.CheckCreditDelta(a.Credit, delta); err != nil {
			return err
		}
		a.Credit = a.Credit.Add(delta)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.walWrite(walEntry{Seq: seq, Stage: walStageCommit}); err != nil {
		_, _ = m.updateWithRetry(accountID, func(a *domain.Account) error {
			a.Credit = a.Credit.Sub(delta)
			return nil
		})
		return nil, err
	}
	return updated, nil
}

// ListTransactions 依帳戶的 TransactionIDs 建立順序 (舊的在前) 回傳交易紀錄
// 帳戶存在但沒有交易時回傳空序列
func (m *MutexLedger) ListTransactions(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	account, err := m.store.Get(accountID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Transaction, 0, len(account.TransactionIDs))
	for _, id := range account.TransactionIDs {
		if tran, ok := m.log.Get(id); ok {
			out = append(out, tran)
		}
	}
	return out, nil
}

// GetAccount 取得帳戶快照
func (m *MutexLedger) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return m.store.Get(accountID)
}

// ListAccounts 列出所有帳戶 (依 ID 排序)
func (m *MutexLedger) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return m.store.List(), nil
}

// getOwned 取得帳戶並驗證擁有者
// ownerID 不符回 ErrAccountNotFound，不洩漏帳戶是否存在
func (m *MutexLedger) getOwned(accountID, ownerID string) (*domain.Account, error) {
	account, err := m.store.Get(accountID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && account.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}
	return account, nil
}

// updateWithRetry 條件更新，版本衝突時重讀重試 (上限 retries 次)
func (m *MutexLedger) updateWithRetry(accountID string, mutate func(*domain.Account) error) (*domain.Account, error) {
	var lastErr error
	for attempt := 0; attempt < m.retries; attempt++ {
		current, err := m.store.Get(accountID)
		if err != nil {
			return nil, err
		}
		updated, err := m.store.ConditionalUpdate(accountID, current.Version, mutate)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConcurrentModification) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// revertMoney 補償用: 撤銷餘額變動並移除歷史引用
func (m *MutexLedger) revertMoney(accountID string, delta decimal.Decimal, tranID string) {
	_, _ = m.updateWithRetry(accountID, func(a *domain.Account) error {
		a.Balance = a.Balance.Add(delta)
		a.TransactionIDs = removeID(a.TransactionIDs, tranID)
		return nil
	})
}

func (m *MutexLedger) nextSeq() uint64 {
	return m.seq.Add(1)
}

func (m *MutexLedger) walWrite(entry walEntry) error {
	if m.wal == nil {
		return nil
	}
	if err := m.wal.Write(entry); err != nil {
		return fmt.Errorf("%w: wal write: %v", domain.ErrStorage, err)
	}
	return nil
}

func (m *MutexLedger) markProcessed(ref uuid.UUID, r replayRef) {
	m.pmu.Lock()
	defer m.pmu.Unlock()
	m.processed[ref] = r
}

// replayAccount 單帳戶操作的冪等檢查
// ref 已處理過就回傳目前快照，不再套用任何效果
func (m *MutexLedger) replayAccount(ref uuid.UUID) (*domain.Account, bool) {
	m.pmu.Lock()
	r, ok := m.processed[ref]
	m.pmu.Unlock()
	if !ok || r.kind == domain.KindTransfer {
		return nil, false
	}
	snapshot, err := m.store.Get(r.sourceID)
	if err != nil {
		return nil, false
	}
	return snapshot, true
}

// replayTransfer 轉帳的冪等檢查
func (m *MutexLedger) replayTransfer(ref uuid.UUID) (*domain.TransferResult, bool) {
	m.pmu.Lock()
	r, ok := m.processed[ref]
	m.pmu.Unlock()
	if !ok || r.kind != domain.KindTransfer {
		return nil, false
	}
	source, err := m.store.Get(r.sourceID)
	if err != nil {
		return nil, false
	}
	destination, err := m.store.Get(r.destinationID)
	if err != nil {
		return nil, false
	}
	tran, _ := m.log.Get(r.tranID)
	return &domain.TransferResult{Source: source, Destination: destination, Transaction: tran}, true
}

// recoverFromWAL 從 WAL 恢復帳本狀態
// 只重放有 commit 標記的 entry；begin 了沒 commit 的視為整筆未發生 (回滾)
func (m *MutexLedger) recoverFromWAL() error {
	if m.wal == nil {
		return nil
	}

	begins := make(map[uint64]walEntry)
	committed := make([]uint64, 0)
	var maxSeq uint64

	err := m.wal.ReadAll(func(raw []byte) error {
		var entry walEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		if entry.Seq > maxSeq {
			maxSeq = entry.Seq
		}
		switch entry.Stage {
		case walStageBegin:
			begins[entry.Seq] = entry
		case walStageCommit:
			committed = append(committed, entry.Seq)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: wal recover: %v", domain.ErrStorage, err)
	}

	for _, seq := range committed {
		entry, ok := begins[seq]
		if !ok {
			continue
		}
		if err := m.applyRecovered(entry); err != nil {
			return err
		}
	}
	m.seq.Store(maxSeq)
	return nil
}

// applyRecovered 重放單筆已 commit 的 entry (不寫 WAL)
// 只有 NewMutexLedger 呼叫，單執行緒，不需要取帳戶鎖
func (m *MutexLedger) applyRecovered(entry walEntry) error {
	switch entry.Op {
	case walOpCreateAccount:
		return m.store.Put(entry.Account)

	case walOpTransaction:
		tran := entry.Transaction
		switch tran.Kind {
		case domain.KindDeposit:
			if _, err := m.applyRecoveredDelta(tran.SourceAccountID, tran.Amount, tran.ID); err != nil {
				return err
			}
		case domain.KindWithdrawal:
			if _, err := m.applyRecoveredDelta(tran.SourceAccountID, tran.Amount.Neg(), tran.ID); err != nil {
				return err
			}
		case domain.KindTransfer:
			if _, err := m.applyRecoveredDelta(tran.SourceAccountID, tran.Amount.Neg(), tran.ID); err != nil {
				return err
			}
			if _, err := m.applyRecoveredDelta(tran.DestinationAccountID, tran.Amount, tran.ID); err != nil {
				return err
			}
		}
		m.log.Append(tran)
		m.processed[tran.RefID] = replayRef{
			kind:          tran.Kind,
			tranID:        tran.ID,
			sourceID:      tran.SourceAccountID,
			destinationID: tran.DestinationAccountID,
		}
		return nil

	case walOpAdjustCredit:
		delta := *entry.Delta
		_, err := m.updateWithRetry(entry.AccountID, func(a *domain.Account) error {
			a.Credit = a.Credit.Add(delta)
			return nil
		})
		return err
	}
	return nil
}

func (m *MutexLedger) applyRecoveredDelta(accountID string, delta decimal.Decimal, tranID string) (*domain.Account, error) {
	return m.updateWithRetry(accountID, func(a *domain.Account) error {
		a.Balance = a.Balance.Add(delta)
		a.TransactionIDs = append(a.TransactionIDs, tranID)
		return nil
	})
}

var _ usecase.Ledger = (*MutexLedger)(nil)
