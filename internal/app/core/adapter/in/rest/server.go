package rest

import (
	"log/slog"
	"net/http"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Server 是 HTTP/JSON 的 driving adapter
// 只負責解析請求、呼叫 CoreUseCase、轉換回應，不含任何帳務邏輯
type Server struct {
	core   *usecase.CoreUseCase
	logger *slog.Logger
}

func NewServer(core *usecase.CoreUseCase, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		core:   core,
		logger: logger,
	}
}

// Router 明確註冊所有路由 (路徑沿用原本的 API 形狀)
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康檢查，供監控或 liveness probe 使用
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("POST /api/accounts", s.createAccount)
	mux.HandleFunc("GET /api/accounts", s.listAccounts)
	mux.HandleFunc("GET /api/accounts/{id}", s.getAccount)

	mux.HandleFunc("POST /api/transactions/deposit", s.deposit)
	mux.HandleFunc("POST /api/transactions/withdraw", s.withdraw)
	mux.HandleFunc("PUT /api/transactions/credit", s.adjustCredit)
	mux.HandleFunc("POST /api/transactions/transfer", s.transfer)
	mux.HandleFunc("GET /api/transactions/account/{id}", s.listTransactions)

	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
