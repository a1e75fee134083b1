package domain

import (
	"context"
	"errors"
)

var (
	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrSourceAccountNotFound 找不到轉出帳戶
	ErrSourceAccountNotFound = errors.New("source account not found")

	// ErrDestinationAccountNotFound 找不到轉入帳戶
	ErrDestinationAccountNotFound = errors.New("destination account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrInvalidAmount 金額必須為正數
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds 餘額加信用額度不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidCreditAdjustment 信用額度不得為負
	ErrInvalidCreditAdjustment = errors.New("credit must not be negative")

	// ErrSameAccount 不能轉帳給自己
	ErrSameAccount = errors.New("cannot transfer to the same account")

	// ErrConcurrentModification 樂觀鎖重試次數用盡
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrBusy 等待帳戶鎖超時
	ErrBusy = errors.New("account lock wait timed out")

	// ErrStorage 儲存層 I/O 錯誤，一律往上回報不吞掉
	ErrStorage = errors.New("storage failure")
)

// 對外的穩定錯誤代碼，HTTP 層只認這些字串，不會把底層錯誤原文吐給使用者
const (
	KindAccountNotFound            = "account_not_found"
	KindSourceAccountNotFound      = "source_account_not_found"
	KindDestinationAccountNotFound = "destination_account_not_found"
	KindAccountAlreadyExists       = "account_already_exists"
	KindInvalidAmount              = "invalid_amount"
	KindInsufficientFunds          = "insufficient_funds"
	KindInvalidCreditAdjustment    = "invalid_credit_adjustment"
	KindSameAccount                = "same_account"
	KindConcurrentModification     = "concurrent_modification"
	KindBusy                       = "busy"
	KindCancelled                  = "cancelled"
	KindStorageFailure             = "storage_failure"
	KindInternal                   = "internal"
)

// Kind 把錯誤分類成穩定的機器可讀代碼
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrSourceAccountNotFound):
		return KindSourceAccountNotFound
	case errors.Is(err, ErrDestinationAccountNotFound):
		return KindDestinationAccountNotFound
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrAccountAlreadyExists):
		return KindAccountAlreadyExists
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInvalidCreditAdjustment):
		return KindInvalidCreditAdjustment
	case errors.Is(err, ErrSameAccount):
		return KindSameAccount
	case errors.Is(err, ErrConcurrentModification):
		return KindConcurrentModification
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrStorage):
		return KindStorageFailure
	default:
		return KindInternal
	}
}
