package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ledger, err := memory.NewMutexLedger(memory.Options{})
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := usecase.NewCoreUseCase(ledger, logger, nil)
	return NewServer(core, logger).Router()
}

func do(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func createTestAccount(t *testing.T, handler http.Handler, userID string) string {
	t.Helper()
	rec := do(t, handler, http.MethodPost, "/api/accounts", map[string]string{"userId": userID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode[accountResponse](t, rec)
	if resp.Account == nil || resp.Account.ID == "" {
		t.Fatalf("create account: missing account in %s", rec.Body.String())
	}
	return resp.Account.ID
}

func TestDepositEndpoint(t *testing.T) {
	handler := newTestServer(t)
	accountID := createTestAccount(t, handler, "alice")

	rec := do(t, handler, http.MethodPost, "/api/transactions/deposit", map[string]any{
		"userId":    "alice",
		"accountId": accountID,
		"amount":    "50",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode[accountResponse](t, rec)
	if !resp.Account.Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance = %s, want 50", resp.Account.Balance)
	}
}

func TestWithdrawInsufficientFundsEndpoint(t *testing.T) {
	handler := newTestServer(t)
	accountID := createTestAccount(t, handler, "alice")

	rec := do(t, handler, http.MethodPost, "/api/transactions/withdraw", map[string]any{
		"userId":    "alice",
		"accountId": accountID,
		"amount":    "10",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
	body := decode[errorBody](t, rec)
	if body.Error != domain.KindInsufficientFunds {
		t.Fatalf("error = %q, want %q", body.Error, domain.KindInsufficientFunds)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	handler := newTestServer(t)

	rec := do(t, handler, http.MethodGet, "/api/accounts/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.Error != domain.KindAccountNotFound {
		t.Fatalf("error = %q, want %q", body.Error, domain.KindAccountNotFound)
	}
}

func TestBadRequestBodies(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/deposit", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed json: status = %d, want 400", rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/accounts", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing userId: status = %d, want 400", rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/transactions/deposit", map[string]any{
		"refId":     "not-a-uuid",
		"accountId": "acc",
		"amount":    "1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad refId: status = %d, want 400", rec.Code)
	}
}

func TestTransferEndpoint(t *testing.T) {
	handler := newTestServer(t)
	sourceID := createTestAccount(t, handler, "alice")
	destinationID := createTestAccount(t, handler, "bob")

	rec := do(t, handler, http.MethodPost, "/api/transactions/deposit", map[string]any{
		"userId": "alice", "accountId": sourceID, "amount": "100",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed deposit: status %d", rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/transactions/transfer", map[string]any{
		"fromAccountId": sourceID,
		"toAccountId":   destinationID,
		"amount":        "40",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode[struct {
		Source      *domain.Account     `json:"sourceAccount"`
		Destination *domain.Account     `json:"destinationAccount"`
		Transaction *domain.Transaction `json:"transaction"`
	}](t, rec)
	if !resp.Source.Balance.Equal(decimal.NewFromInt(60)) || !resp.Destination.Balance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("balances after transfer: %s / %s", resp.Source.Balance, resp.Destination.Balance)
	}
	if resp.Transaction == nil || resp.Transaction.Kind != domain.KindTransfer {
		t.Fatalf("missing transfer record: %s", rec.Body.String())
	}

	// 轉給自己要被擋
	rec = do(t, handler, http.MethodPost, "/api/transactions/transfer", map[string]any{
		"fromAccountId": sourceID,
		"toAccountId":   sourceID,
		"amount":        "1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self transfer: status = %d, want 400", rec.Code)
	}
}

func TestAdjustCreditEndpoint(t *testing.T) {
	handler := newTestServer(t)
	accountID := createTestAccount(t, handler, "alice")

	rec := do(t, handler, http.MethodPut, "/api/transactions/credit", map[string]any{
		"userId":    "alice",
		"accountId": accountID,
		"delta":     "25",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust credit: status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode[accountResponse](t, rec)
	if !resp.Account.Credit.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("credit = %s, want 25", resp.Account.Credit)
	}

	rec = do(t, handler, http.MethodPut, "/api/transactions/credit", map[string]any{
		"userId":    "alice",
		"accountId": accountID,
		"delta":     "-30",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("over-reduction: status = %d, want 400", rec.Code)
	}
}

func TestListTransactionsEndpoint(t *testing.T) {
	handler := newTestServer(t)
	accountID := createTestAccount(t, handler, "alice")

	rec := do(t, handler, http.MethodGet, "/api/transactions/account/"+accountID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[struct {
		Transactions []*domain.Transaction `json:"transactions"`
	}](t, rec)
	if len(resp.Transactions) != 0 {
		t.Fatalf("want empty history, got %d", len(resp.Transactions))
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t)
	rec := do(t, handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d", rec.Code)
	}
}
