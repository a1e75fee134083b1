package rest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

type createAccountRequest struct {
	UserID string `json:"userId"`
}

// moneyRequest 存款 / 提款共用
// refId 可不帶，沒帶就由伺服器產生 (帶了才有跨請求的冪等保證)
type moneyRequest struct {
	RefID     string          `json:"refId"`
	UserID    string          `json:"userId"`
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
}

type creditRequest struct {
	UserID    string          `json:"userId"`
	AccountID string          `json:"accountId"`
	Delta     decimal.Decimal `json:"delta"`
}

type transferRequest struct {
	RefID         string          `json:"refId"`
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
}

type accountResponse struct {
	Message string          `json:"message"`
	Account *domain.Account `json:"account"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeBadRequest(w, "userId is required")
		return
	}
	account, err := s.core.CreateAccount(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{Message: "Account created successfully", Account: account})
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.core.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.core.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	ref, ok := parseRef(w, req.RefID)
	if !ok {
		return
	}
	account, err := s.core.Deposit(r.Context(), ref, req.UserID, req.AccountID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Message: "Amount deposited successfully", Account: account})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	ref, ok := parseRef(w, req.RefID)
	if !ok {
		return
	}
	account, err := s.core.Withdraw(r.Context(), ref, req.UserID, req.AccountID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Message: "Amount withdrawn successfully", Account: account})
}

func (s *Server) adjustCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	account, err := s.core.AdjustCredit(r.Context(), req.UserID, req.AccountID, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Message: "Credit updated successfully", Account: account})
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	ref, ok := parseRef(w, req.RefID)
	if !ok {
		return
	}
	result, err := s.core.Transfer(r.Context(), ref, req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "Transfer completed successfully",
		"sourceAccount":      result.Source,
		"destinationAccount": result.Destination,
		"transaction":        result.Transaction,
	})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.core.ListTransactions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// parseRef 解析外部追蹤號；空字串就產生一個新的
func parseRef(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.New(), true
	}
	ref, err := uuid.Parse(raw)
	if err != nil {
		writeBadRequest(w, "invalid refId")
		return uuid.Nil, false
	}
	return ref, true
}
