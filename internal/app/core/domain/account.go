package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 帳戶聚合
// Balance 可以是負數，但最多只能欠到 Credit 的額度 (Balance + Credit >= 0)
// Credit 為信用額度，永遠 >= 0
// TransactionIDs 依建立順序記錄這個帳戶參與過的交易，只會 append 不會改寫
type Account struct {
	ID      string          `json:"id"`
	OwnerID string          `json:"ownerId"`
	Balance decimal.Decimal `json:"balance"`
	Credit  decimal.Decimal `json:"credit"`
	// 交易歷史的引用 (弱引用，實際紀錄由 TransactionLog 持有)
	TransactionIDs []string `json:"transactionIds"`
	// Version: 樂觀鎖版本號，每次成功更新 +1
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAccount 建立一個零餘額、零信用額度的新帳戶
func NewAccount(id, ownerID string, createdAt time.Time) *Account {
	return &Account{
		ID:             id,
		OwnerID:        ownerID,
		Balance:        decimal.Zero,
		Credit:         decimal.Zero,
		TransactionIDs: make([]string, 0),
		CreatedAt:      createdAt,
	}
}

// Snapshot 回傳帳戶的深拷貝，避免呼叫端改到內部狀態
func (a *Account) Snapshot() *Account {
	cp := *a
	cp.TransactionIDs = make([]string, len(a.TransactionIDs))
	copy(cp.TransactionIDs, a.TransactionIDs)
	return &cp
}
