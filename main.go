package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/torus-agents/pin_service/api"
	"github.com/torus-agents/pin_service/chain"
	"github.com/torus-agents/pin_service/config"
	"github.com/torus-agents/pin_service/domain"
	"github.com/torus-agents/pin_service/pinning"
	"github.com/torus-agents/pin_service/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. 配置
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}
	minBalance, err := cfg.MinBalance()
	if err != nil {
		logger.Error("invalid admission threshold", "error", err)
		os.Exit(1)
	}

	// 2. 初始化依赖
	dialCtx, cancel := context.WithTimeout(context.Background(), cfg.Ledger.Timeout)
	ledger, err := chain.Dial(dialCtx, cfg.Ledger)
	cancel()
	if err != nil {
		logger.Error("dial ledger failed", "url", cfg.Ledger.URL, "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	verifier := domain.NewKeypairVerifier(cfg.Ledger.SS58Prefix)
	gateway := pinning.NewGateway(pinning.NewPinataClient(cfg.Pinata))
	uploadService := service.NewUploadService(verifier, ledger, gateway, minBalance, logger)

	// 3. Gin
	gin.SetMode(gin.ReleaseMode)
	uploadHandler := api.NewUploadHandler(uploadService, cfg.Upload.MaxBytes, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(uploadHandler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "ledger", cfg.Ledger.URL, "min_balance", minBalance.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server start failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
