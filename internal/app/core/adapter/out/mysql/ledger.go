package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// sqlAccount 對應 accounts 表
// 金額欄位用 decimal(20,4)，不用浮點數
type sqlAccount struct {
	ID        string          `gorm:"primaryKey;type:char(36)"`
	OwnerID   string          `gorm:"index;type:char(36)"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,4)"`
	Credit    decimal.Decimal `gorm:"type:decimal(20,4)"`
	Version   uint64
	CreatedAt time.Time
	UpdatedAt int64 `gorm:"autoUpdateTime:milli"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應 transactions 表
// source / destination 都有索引，轉帳兩邊查歷史都找得到同一筆
type sqlTransaction struct {
	ID                   string          `gorm:"primaryKey;type:char(36)"`
	RefID                string          `gorm:"column:ref_id;type:char(36);uniqueIndex"`
	Kind                 string          `gorm:"type:varchar(16)"`
	SourceAccountID      string          `gorm:"index;type:char(36)"`
	DestinationAccountID string          `gorm:"index;type:char(36)"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,4)"`
	Timestamp            time.Time
	CreatedAt            int64 `gorm:"autoCreateTime:milli"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// MySQLLedger 是以 MySQL 為後端的帳本
// 原子性直接用資料庫交易，鎖用 SELECT ... FOR UPDATE (依 ID 遞增取得，避免死鎖)
type MySQLLedger struct {
	client *mysql.Client
	clock  *domain.Clock
}

func NewMySQLLedger(client *mysql.Client) (*MySQLLedger, error) {
	if err := client.DB().AutoMigrate(&sqlAccount{}, &sqlTransaction{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrStorage, err)
	}
	return &MySQLLedger{
		client: client,
		clock:  domain.NewClock(),
	}, nil
}

// CreateAccount 建立新帳戶
func (l *MySQLLedger) CreateAccount(ctx context.Context, ownerID string) (*domain.Account, error) {
	row := &sqlAccount{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Balance:   decimal.Zero,
		Credit:    decimal.Zero,
		CreatedAt: l.clock.Now(),
	}
	if err := l.client.DB().WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("%w: create account: %v", domain.ErrStorage, err)
	}
	return l.toDomain(l.client.DB().WithContext(ctx), row)
}

// Deposit 存款
func (l *MySQLLedger) Deposit(ctx context.Context, ref uuid.UUID, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	return l.singleAccountMutation(ctx, ref, ownerID, accountID, domain.KindDeposit, amount, amount)
}

// Withdraw 提款
func (l *MySQLLedger) Withdraw(ctx context.Context, ref uuid.UUID, ownerID, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	return l.singleAccountMutation(ctx, ref, ownerID, accountID, domain.KindWithdrawal, amount, amount.Neg())
}

// singleAccountMutation 單帳戶金流的共用流程
// 鎖定帳戶列 -> 不變量檢查 -> 更新餘額 -> 寫交易紀錄，整包在一個 DB Transaction 裡
func (l *MySQLLedger) singleAccountMutation(ctx context.Context, ref uuid.UUID, ownerID, accountID string, kind domain.TransactionKind, amount, delta decimal.Decimal) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var updated *domain.Account
	err := l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 冪等: 同一個 ref 已處理過就直接回目前狀態
		if done, err := l.alreadyProcessed(tx, ref); err != nil {
			return err
		} else if done {
			account, err := l.lockAccount(tx, accountID, ownerID)
			if err != nil {
				return err
			}
			var convErr error
			updated, convErr = l.toDomain(tx, account)
			return convErr
		}

		account, err := l.lockAccount(tx, accountID, ownerID)
		if err != nil {
			return err
		}
		if kind == domain.KindWithdrawal {
			if err := domain.CheckBalanceDelta(account.Balance, account.Credit, delta); err != nil {
				return err
			}
		}

		account.Balance = account.Balance.Add(delta)
		account.Version++
		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("%w: update balance: %v", domain.ErrStorage, err)
		}

		record := &sqlTransaction{
			ID:              uuid.NewString(),
			RefID:           ref.String(),
			Kind:            string(kind),
			SourceAccountID: accountID,
			Amount:          amount,
			Timestamp:       l.clock.Now(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("%w: insert transaction: %v", domain.ErrStorage, err)
		}

		var convErr error
		updated, convErr = l.toDomain(tx, account)
		return convErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Transfer 轉帳: 兩列帳戶依 ID 遞增 FOR UPDATE 鎖定，
// 扣款、入帳、交易紀錄在同一個 DB Transaction 內一起生效
func (l *MySQLLedger) Transfer(ctx context.Context, ref uuid.UUID, sourceID, destinationID string, amount decimal.Decimal) (*domain.TransferResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if sourceID == destinationID {
		return nil, domain.ErrSameAccount
	}

	var result *domain.TransferResult
	err := l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if done, err := l.alreadyProcessed(tx, ref); err != nil {
			return err
		} else if done {
			return l.loadTransferResult(tx, ref, sourceID, destinationID, &result)
		}

		lockIDs := domain.LockOrder(sourceID, destinationID)
		var rows []sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", lockIDs).
			Order("id ASC").
			Find(&rows).Error; err != nil {
			return fmt.Errorf("%w: lock accounts: %v", domain.ErrStorage, err)
		}

		accountMap := make(map[string]*sqlAccount, len(rows))
		for i := range rows {
			accountMap[rows[i].ID] = &rows[i]
		}
		source, ok := accountMap[sourceID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSourceAccountNotFound, sourceID)
		}
		destination, ok := accountMap[destinationID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrDestinationAccountNotFound, destinationID)
		}

		if err := domain.CheckBalanceDelta(source.Balance, source.Credit, amount.Neg()); err != nil {
			return err
		}

		source.Balance = source.Balance.Sub(amount)
		source.Version++
		destination.Balance = destination.Balance.Add(amount)
		destination.Version++
		for _, row := range []*sqlAccount{source, destination} {
			if err := tx.Save(row).Error; err != nil {
				return fmt.Errorf("%w: update balance: %v", domain.ErrStorage, err)
			}
		}

		record := &sqlTransaction{
			ID:                   uuid.NewString(),
			RefID:                ref.String(),
			Kind:                 string(domain.KindTransfer),
			SourceAccountID:      sourceID,
			DestinationAccountID: destinationID,
			Amount:               amount,
			Timestamp:            l.clock.Now(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("%w: insert transaction: %v", domain.ErrStorage, err)
		}

		sourceSnapshot, err := l.toDomain(tx, source)
		if err != nil {
			return err
		}
		destinationSnapshot, err := l.toDomain(tx, destination)
		if err != nil {
			return err
		}
		result = &domain.TransferResult{
			Source:      sourceSnapshot,
			Destination: destinationSnapshot,
			Transaction: toDomainTransaction(record),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdjustCredit 調整信用額度 (不產生交易紀錄)
func (l *MySQLLedger) AdjustCredit(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) (*domain.Account, error) {
	var updated *domain.Account
	err := l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := l.lockAccount(tx, accountID, ownerID)
		if err != nil {
			return err
		}
		if err := domain.CheckCreditDelta(account.Credit, delta); err != nil {
			return err
		}
		account.Credit = account.Credit.Add(delta)
		account.Version++
		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("%w: update credit: %v", domain.ErrStorage, err)
		}
		var convErr error
		updated, convErr = l.toDomain(tx, account)
		return convErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListTransactions 依建立順序 (舊的在前) 回傳帳戶參與過的交易
// source 或 destination 任一邊是這個帳戶都算
func (l *MySQLLedger) ListTransactions(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	db := l.client.DB().WithContext(ctx)
	if _, err := l.getAccountRow(db, accountID); err != nil {
		return nil, err
	}

	var rows []sqlTransaction
	if err := db.
		Where("source_account_id = ? OR destination_account_id = ?", accountID, accountID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: query transactions: %v", domain.ErrStorage, err)
	}

	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, toDomainTransaction(&rows[i]))
	}
	return out, nil
}

// GetAccount 取得帳戶快照
func (l *MySQLLedger) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	db := l.client.DB().WithContext(ctx)
	row, err := l.getAccountRow(db, accountID)
	if err != nil {
		return nil, err
	}
	return l.toDomain(db, row)
}

// ListAccounts 列出所有帳戶 (依 ID 排序)
func (l *MySQLLedger) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	db := l.client.DB().WithContext(ctx)
	var rows []sqlAccount
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", domain.ErrStorage, err)
	}
	out := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		account, err := l.toDomain(db, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, nil
}

// lockAccount 以 FOR UPDATE 鎖定單一帳戶列並驗證擁有者
func (l *MySQLLedger) lockAccount(tx *gorm.DB, accountID, ownerID string) (*sqlAccount, error) {
	var row sqlAccount
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", accountID)
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
		}
		return nil, fmt.Errorf("%w: lock account: %v", domain.ErrStorage, err)
	}
	return &row, nil
}

func (l *MySQLLedger) getAccountRow(db *gorm.DB, accountID string) (*sqlAccount, error) {
	var row sqlAccount
	if err := db.Where("id = ?", accountID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
		}
		return nil, fmt.Errorf("%w: get account: %v", domain.ErrStorage, err)
	}
	return &row, nil
}

// alreadyProcessed 檢查 ref 是否已經有交易紀錄 (冪等重放)
func (l *MySQLLedger) alreadyProcessed(tx *gorm.DB, ref uuid.UUID) (bool, error) {
	var record sqlTransaction
	err := tx.Where("ref_id = ?", ref.String()).First(&record).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("%w: lookup ref: %v", domain.ErrStorage, err)
}

func (l *MySQLLedger) loadTransferResult(tx *gorm.DB, ref uuid.UUID, sourceID, destinationID string, out **domain.TransferResult) error {
	source, err := l.getAccountRow(tx, sourceID)
	if err != nil {
		return err
	}
	destination, err := l.getAccountRow(tx, destinationID)
	if err != nil {
		return err
	}
	sourceSnapshot, err := l.toDomain(tx, source)
	if err != nil {
		return err
	}
	destinationSnapshot, err := l.toDomain(tx, destination)
	if err != nil {
		return err
	}
	var record sqlTransaction
	if err := tx.Where("ref_id = ?", ref.String()).First(&record).Error; err != nil {
		return fmt.Errorf("%w: lookup ref: %v", domain.ErrStorage, err)
	}
	*out = &domain.TransferResult{
		Source:      sourceSnapshot,
		Destination: destinationSnapshot,
		Transaction: toDomainTransaction(&record),
	}
	return nil
}

// toDomain 把資料列轉成 domain.Account，交易引用從 transactions 表重建
func (l *MySQLLedger) toDomain(db *gorm.DB, row *sqlAccount) (*domain.Account, error) {
	var ids []string
	if err := db.Model(&sqlTransaction{}).
		Where("source_account_id = ? OR destination_account_id = ?", row.ID, row.ID).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("%w: load transaction ids: %v", domain.ErrStorage, err)
	}
	return &domain.Account{
		ID:             row.ID,
		OwnerID:        row.OwnerID,
		Balance:        row.Balance,
		Credit:         row.Credit,
		TransactionIDs: ids,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt,
	}, nil
}

func toDomainTransaction(row *sqlTransaction) *domain.Transaction {
	ref, _ := uuid.Parse(row.RefID)
	return &domain.Transaction{
		ID:                   row.ID,
		RefID:                ref,
		Kind:                 domain.TransactionKind(row.Kind),
		SourceAccountID:      row.SourceAccountID,
		DestinationAccountID: row.DestinationAccountID,
		Amount:               row.Amount,
		Timestamp:            row.Timestamp,
	}
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
