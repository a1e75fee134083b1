package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Ledger 是帳務系統的介面，由 memory / mysql adapter 實作
//
// 單帳戶操作只會對該帳戶取得互斥權，不會卡到別的帳戶
// Transfer 會依固定順序同時鎖住兩個帳戶
// ownerID 不符視同帳戶不存在 (跟查無帳戶回一樣的錯，避免洩漏帳戶存在性)
type Ledger interface {
	// CreateAccount 建立零餘額、零信用額度的新帳戶
	CreateAccount(ctx context.Context, ownerID string) (*domain.Account, error)

	// Deposit 存款，回傳更新後的帳戶快照
	// ref 相同的請求只會入帳一次
	Deposit(ctx context.Context, ref uuid.UUID, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error)

	// Withdraw 提款，餘額可以透支到信用額度為止
	Withdraw(ctx context.Context, ref uuid.UUID, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error)

	// Transfer 轉帳，三個效果 (扣款、入帳、交易紀錄) 要嘛全部生效要嘛全部不生效
	Transfer(ctx context.Context, ref uuid.UUID, sourceID, destinationID string, amount decimal.Decimal) (*domain.TransferResult, error)

	// AdjustCredit 調整信用額度，不會產生交易紀錄 (信用額度變動不是金流)
	AdjustCredit(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) (*domain.Account, error)

	// ListTransactions 依建立順序 (舊的在前) 回傳帳戶的交易歷史
	// 帳戶存在但沒有交易時回傳空序列，不是錯誤
	ListTransactions(ctx context.Context, accountID string) ([]*domain.Transaction, error)

	// GetAccount 取得帳戶快照
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// ListAccounts 列出所有帳戶
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
}
