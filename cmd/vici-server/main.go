package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"vicitrade/internal/api"
	"vicitrade/internal/config"
	"vicitrade/internal/store"
	"vicitrade/internal/strategy"
	"vicitrade/internal/strategy/builtins"
	"vicitrade/internal/util"
)

func main() {
	cfgPath := "config/vici.yaml"
	if p := os.Getenv("VICI_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		log.Fatalf("creating database directory: %v", err)
	}
	results, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open result store: %v", err)
	}
	defer results.Close()

	bt := strategy.NewBacktester(
		store.NewParquetStore(cfg.Storage.DataDir),
		results,
		builtins.NewRegistry(),
		strategy.WithLogger(logger),
		strategy.WithRiskFreeRate(cfg.Backtest.RiskFreeRate),
		strategy.WithMaxConcurrent(cfg.Backtest.MaxConcurrent),
	)
	srv := api.NewServer(api.NewService(bt, cfg.Backtest, logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("vici-server starting",
		"addr", cfg.Server.Addr(),
		"data_dir", cfg.Storage.DataDir,
		"sqlite", cfg.Storage.SQLitePath,
	)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr()); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("vici-server stopped")
}
