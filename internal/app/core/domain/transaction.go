package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind 交易類型
type TransactionKind string

const (
	// 存款
	KindDeposit TransactionKind = "deposit"
	// 提款
	KindWithdrawal TransactionKind = "withdrawal"
	// 轉帳
	KindTransfer TransactionKind = "transfer"
)

// Transaction 交易紀錄，建立後不可變，也不會被刪除
//
// SourceAccountID 在 deposit 時是入帳帳戶、withdrawal/transfer 時是出帳帳戶
// DestinationAccountID 只有 transfer 會填，代表收款帳戶
// 轉帳雙方共用同一筆 Transaction，兩邊的歷史都查得到
type Transaction struct {
	ID string `json:"id"`
	// RefID: 外部追蹤號，用於冪等重放
	RefID                uuid.UUID       `json:"refId"`
	Kind                 TransactionKind `json:"kind"`
	SourceAccountID      string          `json:"sourceAccountId"`
	DestinationAccountID string          `json:"destinationAccountId,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	// Timestamp 由 Clock 分配，單一 process 內保證不遞減
	Timestamp time.Time `json:"timestamp"`
}

// NewTransaction 建立一筆交易紀錄並分配 ID
func NewTransaction(ref uuid.UUID, kind TransactionKind, sourceID, destinationID string, amount decimal.Decimal, ts time.Time) *Transaction {
	return &Transaction{
		ID:                   uuid.NewString(),
		RefID:                ref,
		Kind:                 kind,
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		Timestamp:            ts,
	}
}

// LockIDs 回傳需要鎖定的帳號 ID，並確保順序以避免死鎖
func (t *Transaction) LockIDs() []string {
	if t.Kind == KindTransfer {
		return LockOrder(t.SourceAccountID, t.DestinationAccountID)
	}
	return []string{t.SourceAccountID}
}

// LockOrder 把兩個帳戶 ID 排成固定的全域順序 (字典序遞增)
// 所有跨帳戶操作都必須依這個順序取鎖，反向轉帳才不會互相等待
func LockOrder(a, b string) []string {
	if a < b {
		return []string{a, b}
	}
	return []string{b, a}
}

// TransferResult 轉帳成功後回傳雙方的帳戶快照與共用的交易紀錄
type TransferResult struct {
	Source      *Account     `json:"sourceAccount"`
	Destination *Account     `json:"destinationAccount"`
	Transaction *Transaction `json:"transaction"`
}
