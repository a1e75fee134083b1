package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Recorder 接收操作指標 (Prometheus adapter 實作)，可為 nil
type Recorder interface {
	RecordOperation(operation, outcome string, elapsed time.Duration)
	SetBalance(accountID string, balance float64)
}

// CoreUseCase 是核心業務邏輯層
//
// 職責:
//   - 取鎖前就能判定的驗證 (InvalidAmount / SameAccount) 在這裡擋掉
//   - 每個操作完成時發出一筆結構化事件 (操作、帳戶、金額、結果餘額、結果代碼)
//     核心邏輯只依賴 slog，不綁定任何輸出通道
type CoreUseCase struct {
	ledger   Ledger
	logger   *slog.Logger
	recorder Recorder
}

func NewCoreUseCase(ledger Ledger, logger *slog.Logger, recorder Recorder) *CoreUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoreUseCase{
		ledger:   ledger,
		logger:   logger,
		recorder: recorder,
	}
}

// CreateAccount 建立新帳戶
func (c *CoreUseCase) CreateAccount(ctx context.Context, ownerID string) (*domain.Account, error) {
	start := time.Now()
	account, err := c.ledger.CreateAccount(ctx, ownerID)
	c.finish("create_account", start, err,
		slog.String("owner_id", ownerID),
		accountAttr("account", account))
	if account != nil {
		c.setBalance(account)
	}
	return account, err
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, ref uuid.UUID, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	start := time.Now()
	var account *domain.Account
	err := domain.ValidateAmount(amount)
	if err == nil {
		account, err = c.ledger.Deposit(ctx, ref, ownerID, accountID, amount)
	}
	c.finish("deposit", start, err,
		slog.String("account_id", accountID),
		slog.String("amount", amount.String()),
		accountAttr("account", account))
	if account != nil {
		c.setBalance(account)
	}
	return account, err
}

// Withdraw 提款
func (c *CoreUseCase) Withdraw(ctx context.Context, ref uuid.UUID, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	start := time.Now()
	var account *domain.Account
	err := domain.ValidateAmount(amount)
	if err == nil {
		account, err = c.ledger.Withdraw(ctx, ref, ownerID, accountID, amount)
	}
	c.finish("withdraw", start, err,
		slog.String("account_id", accountID),
		slog.String("amount", amount.String()),
		accountAttr("account", account))
	if account != nil {
		c.setBalance(account)
	}
	return account, err
}

// Transfer 轉帳
func (c *CoreUseCase) Transfer(ctx context.Context, ref uuid.UUID, sourceID, destinationID string, amount decimal.Decimal) (*domain.TransferResult, error) {
	start := time.Now()
	var result *domain.TransferResult
	err := domain.ValidateAmount(amount)
	if err == nil && sourceID == destinationID {
		err = domain.ErrSameAccount
	}
	if err == nil {
		result, err = c.ledger.Transfer(ctx, ref, sourceID, destinationID, amount)
	}
	attrs := []slog.Attr{
		slog.String("source_account_id", sourceID),
		slog.String("destination_account_id", destinationID),
		slog.String("amount", amount.String()),
	}
	if result != nil {
		attrs = append(attrs,
			accountAttr("source", result.Source),
			accountAttr("destination", result.Destination))
	}
	c.finish("transfer", start, err, attrs...)
	if result != nil {
		c.setBalance(result.Source)
		c.setBalance(result.Destination)
	}
	return result, err
}

// AdjustCredit 調整信用額度
func (c *CoreUseCase) AdjustCredit(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) (*domain.Account, error) {
	start := time.Now()
	account, err := c.ledger.AdjustCredit(ctx, ownerID, accountID, delta)
	c.finish("adjust_credit", start, err,
		slog.String("account_id", accountID),
		slog.String("delta", delta.String()),
		accountAttr("account", account))
	return account, err
}

// ListTransactions 查詢交易歷史 (舊的在前)
func (c *CoreUseCase) ListTransactions(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	return c.ledger.ListTransactions(ctx, accountID)
}

// GetAccount 取得帳戶快照
func (c *CoreUseCase) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return c.ledger.GetAccount(ctx, accountID)
}

// ListAccounts 列出所有帳戶
func (c *CoreUseCase) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return c.ledger.ListAccounts(ctx)
}

// finish 發出操作完成事件並記錄指標，一個操作只發一筆
func (c *CoreUseCase) finish(operation string, start time.Time, err error, attrs ...slog.Attr) {
	outcome := "ok"
	level := slog.LevelInfo
	if err != nil {
		outcome = domain.Kind(err)
		level = slog.LevelWarn
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("operation", operation), slog.String("outcome", outcome))
	all = append(all, attrs...)
	c.logger.LogAttrs(context.Background(), level, "ledger operation", all...)

	if c.recorder != nil {
		c.recorder.RecordOperation(operation, outcome, time.Since(start))
	}
}

func (c *CoreUseCase) setBalance(account *domain.Account) {
	if c.recorder == nil || account == nil {
		return
	}
	c.recorder.SetBalance(account.ID, account.Balance.InexactFloat64())
}

// accountAttr 把帳戶的結果餘額攤平進事件，account 為 nil 時給空群組
func accountAttr(key string, account *domain.Account) slog.Attr {
	if account == nil {
		return slog.Group(key)
	}
	return slog.Group(key,
		slog.String("id", account.ID),
		slog.String("balance", account.Balance.String()),
		slog.String("credit", account.Credit.String()),
	)
}
