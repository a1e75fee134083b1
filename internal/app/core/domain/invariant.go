package domain

import "github.com/shopspring/decimal"

// 餘額不變量的純函式檢查，不碰任何儲存層
// 規則: 任何操作完成後 Balance + Credit >= 0 且 Credit >= 0 必須成立

// ValidateAmount 金額必須為正數
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CheckBalanceDelta 檢查套用 delta 之後餘額是否仍在信用額度內
// balance + credit + delta < 0 時拒絕
func CheckBalanceDelta(balance, credit, delta decimal.Decimal) error {
	if balance.Add(credit).Add(delta).IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

// CheckCreditDelta 檢查調整後的信用額度不會變成負數
func CheckCreditDelta(credit, delta decimal.Decimal) error {
	if credit.Add(delta).IsNegative() {
		return ErrInvalidCreditAdjustment
	}
	return nil
}
