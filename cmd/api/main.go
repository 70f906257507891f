package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/app"
	"github.com/zhouzirui/agora/backend/internal/config"
	"github.com/zhouzirui/agora/backend/internal/handler"
	"github.com/zhouzirui/agora/backend/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("failed to load configuration", zap.Error(err))
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}
	if !cfg.AI.Enabled() {
		logger.Fatal("Ark 凭证未配置: 需要 Model 以及 ARK_API_KEY 或 AK/SK 组合")
	}

	application, err := app.New(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("failed to close application", zap.Error(err))
		}
	}()

	router := handler.NewRouter(ctx, handler.Dependencies{
		Participants:     application.Roster,
		Chat:             application.Chat,
		Server:           cfg.Server,
		MaxMessageLength: cfg.Orchestration.MaxMessageLength,
		Metrics:          application.Metrics,
		Gatherer:         application.Registry,
		Logger:           logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("agora backend listening", zap.String("addr", srv.Addr))
	if err := runServer(ctx, srv, shutdownGrace, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// shutdownGrace 需要覆盖一次完整讨论的时长
const shutdownGrace = 30 * time.Second

// runServer serves until ctx is done, then drains in-flight discussions for at most grace.
func runServer(ctx context.Context, srv *http.Server, grace time.Duration, logger *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("grace", grace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
