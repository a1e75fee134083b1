package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rest_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/rest"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 2. 依設定選擇帳本後端
	var ledger usecase.Ledger
	switch cfg.Backend {
	case config.BackendMemory:
		walFile, err := wal.New(cfg.WALPath)
		if err != nil {
			log.Fatalf("Failed to open WAL: %v", err)
		}
		defer walFile.Close()

		memLedger, err := memory_adapter.NewMutexLedger(memory_adapter.Options{
			WAL:      walFile,
			LockWait: cfg.LockWait,
			Retries:  cfg.Retries,
		})
		if err != nil {
			log.Fatalf("Failed to init memory ledger: %v", err)
		}
		ledger = memLedger
		log.Printf("Memory ledger ready (wal: %s)", cfg.WALPath)

	case config.BackendMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		defer dbClient.Close()

		sqlLedger, err := mysql_adapter.NewMySQLLedger(dbClient)
		if err != nil {
			log.Fatalf("Failed to init MySQL ledger: %v", err)
		}
		ledger = sqlLedger
		log.Println("MySQL ledger ready")

	default:
		log.Fatalf("Invalid backend: %s", cfg.Backend)
	}

	// 3. 初始化 UseCase 與指標
	collector := metrics.NewCollector()
	core := usecase.NewCoreUseCase(ledger, logger, collector)

	// 4. HTTP Adapter (Driving Adapter)
	server := rest_adapter.NewServer(core, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", collector.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	go func() {
		log.Printf("Starting HTTP server on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to serve: %v", err)
		}
	}()
	go func() {
		log.Printf("Starting metrics server on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown: %v", err)
	}
	log.Println("Server exited")
}
