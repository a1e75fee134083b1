package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// accountStore 是 in-memory 的帳戶儲存
// 進出都是快照拷貝，內部狀態不外流
// 版本號檢查讓上層可以做 compare-and-swap 式的條件更新
type accountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func newAccountStore() *accountStore {
	return &accountStore{accounts: make(map[string]*domain.Account)}
}

// Get 取得帳戶快照，不存在回 ErrAccountNotFound
func (s *accountStore) Get(id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return account.Snapshot(), nil
}

// Put 寫入新帳戶，ID 重複回 ErrAccountAlreadyExists
func (s *accountStore) Put(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, account.ID)
	}
	s.accounts[account.ID] = account.Snapshot()
	return nil
}

// Delete 移除帳戶，只給補償流程用 (建立帳戶 commit 失敗時回滾)
func (s *accountStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

// ConditionalUpdate 版本號相符時才套用 mutate，並把版本號 +1
// 版本不符回 ErrConcurrentModification，mutate 回錯誤時狀態不變
func (s *accountStore) ConditionalUpdate(id string, expectedVersion uint64, mutate func(*domain.Account) error) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: account %s version %d != %d",
			domain.ErrConcurrentModification, id, current.Version, expectedVersion)
	}
	next := current.Snapshot()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version++
	s.accounts[id] = next
	return next.Snapshot(), nil
}

// List 回傳所有帳戶的快照，依 ID 排序讓結果穩定
func (s *accountStore) List() []*domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, account.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// transactionLog 是 in-memory 的交易日誌
// 每筆交易同時在轉出方與轉入方的索引下各掛一次，
// 兩邊查歷史都看得到同一筆紀錄 (共用同一個 Transaction ID)
type transactionLog struct {
	mu        sync.RWMutex
	records   map[string]*domain.Transaction
	byAccount map[string][]string
}

func newTransactionLog() *transactionLog {
	return &transactionLog{
		records:   make(map[string]*domain.Transaction),
		byAccount: make(map[string][]string),
	}
}

// Append 寫入一筆交易並更新雙邊索引
func (t *transactionLog) Append(tran *domain.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *tran
	t.records[tran.ID] = &cp
	t.byAccount[tran.SourceAccountID] = append(t.byAccount[tran.SourceAccountID], tran.ID)
	if tran.DestinationAccountID != "" {
		t.byAccount[tran.DestinationAccountID] = append(t.byAccount[tran.DestinationAccountID], tran.ID)
	}
}

// Remove 移除一筆交易，只給補償流程用
func (t *transactionLog) Remove(tranID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tran, ok := t.records[tranID]
	if !ok {
		return
	}
	delete(t.records, tranID)
	t.byAccount[tran.SourceAccountID] = removeID(t.byAccount[tran.SourceAccountID], tranID)
	if tran.DestinationAccountID != "" {
		t.byAccount[tran.DestinationAccountID] = removeID(t.byAccount[tran.DestinationAccountID], tranID)
	}
}

// Get 取得單筆交易的拷貝
func (t *transactionLog) Get(tranID string) (*domain.Transaction, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tran, ok := t.records[tranID]
	if !ok {
		return nil, false
	}
	cp := *tran
	return &cp, true
}

// QueryByAccount 依寫入順序 (舊的在前) 回傳帳戶參與過的交易
func (t *transactionLog) QueryByAccount(accountID string) []*domain.Transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.byAccount[accountID]
	out := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		if tran, ok := t.records[id]; ok {
			cp := *tran
			out = append(out, &cp)
		}
	}
	return out
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
