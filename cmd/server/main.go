package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"linguaporta/internal/app"
	"linguaporta/internal/config"
	"linguaporta/internal/handlers"
	"linguaporta/internal/logger"
	"linguaporta/internal/metrics"
	"linguaporta/internal/security"
	"linguaporta/internal/service"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $CONFIG_FILE or ./config/config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Initialize the answer store
	answers, closeGrid, err := app.OpenAnswerService(ctx, cfg, log, service.WithRecorder(m))
	if err != nil {
		return err
	}
	defer closeGrid()

	log.Info("answer store ready",
		zap.String("backend", cfg.Store.Backend),
		zap.Strings("partitions", answers.Partitions()))

	// Setup routes and middleware, outermost first
	mux := handlers.NewRouter(answers, m.Handler(), log, cfg.Server.MaxBodyBytes)
	chain := []handlers.Middleware{
		handlers.RequestID,
		handlers.Logging(log),
		handlers.Recover(log),
		handlers.Metrics(m),
		handlers.CORS(cfg.Server.AllowedOrigins),
	}
	if cfg.RateLimit.Requests > 0 {
		limiter := security.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer limiter.Close()
		chain = append(chain, handlers.RateLimit(limiter, log))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
