package rest

import (
	"encoding/json"
	"net/http"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// HTTP 層自己的錯誤代碼 (請求本身就不合法，還沒進到核心)
const kindBadRequest = "bad_request"

// errorBody 統一的錯誤回應格式
// error 是穩定的機器可讀代碼，message 給人看；絕不回傳底層錯誤原文
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON 統一輸出成功回應
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 依錯誤分類輸出對應的狀態碼與穩定代碼
func writeError(w http.ResponseWriter, err error) {
	kind := domain.Kind(err)
	writeJSON(w, statusFor(kind), errorBody{
		Error:   kind,
		Message: messageFor(kind),
	})
}

// writeBadRequest 請求解析失敗 (格式錯誤的 JSON、非法的 ref 等)
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:   kindBadRequest,
		Message: message,
	})
}

func statusFor(kind string) int {
	switch kind {
	case domain.KindInvalidAmount, domain.KindSameAccount, domain.KindInvalidCreditAdjustment:
		return http.StatusBadRequest
	case domain.KindAccountNotFound, domain.KindSourceAccountNotFound, domain.KindDestinationAccountNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds, domain.KindAccountAlreadyExists, domain.KindConcurrentModification:
		return http.StatusConflict
	case domain.KindBusy:
		return http.StatusServiceUnavailable
	case domain.KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// messageFor 給使用者看的訊息，跟代碼一樣是固定的
func messageFor(kind string) string {
	switch kind {
	case domain.KindAccountNotFound:
		return "Account Not Found"
	case domain.KindSourceAccountNotFound:
		return "Source Account Not Found"
	case domain.KindDestinationAccountNotFound:
		return "Destination Account Not Found"
	case domain.KindAccountAlreadyExists:
		return "Account Already Exists"
	case domain.KindInvalidAmount:
		return "Amount must be positive"
	case domain.KindInsufficientFunds:
		return "Insufficient funds"
	case domain.KindInvalidCreditAdjustment:
		return "Credit must not be negative"
	case domain.KindSameAccount:
		return "Cannot transfer to the same account"
	case domain.KindConcurrentModification:
		return "Conflicting update, please retry"
	case domain.KindBusy:
		return "Account is busy, please retry"
	case domain.KindCancelled:
		return "Request cancelled"
	default:
		return "Internal error"
	}
}
