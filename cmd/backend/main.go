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

	configloader "github.com/foxseedlab/minutagen/external/config"
	"github.com/foxseedlab/minutagen/external/httpapi"
	mediaimpl "github.com/foxseedlab/minutagen/external/media"
	realtimeimpl "github.com/foxseedlab/minutagen/external/realtime"
	storageimpl "github.com/foxseedlab/minutagen/external/storage"
	summarizerimpl "github.com/foxseedlab/minutagen/external/summarizer"
	transcriberimpl "github.com/foxseedlab/minutagen/external/transcriber"
	webhookimpl "github.com/foxseedlab/minutagen/external/webhook"
	"github.com/foxseedlab/minutagen/internal/config"
	"github.com/foxseedlab/minutagen/internal/metrics"
	"github.com/foxseedlab/minutagen/internal/minutes"
	"github.com/foxseedlab/minutagen/internal/session"
	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "http_addr", cfg.HTTPAddr)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	if err := run(cfg, injector); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	summarizerimpl.RegisterDI(injector)
	realtimeimpl.RegisterDI(injector)
	mediaimpl.RegisterDI(injector)
	storageimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	minutes.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) error {
	hub, err := do.Invoke[*realtimeimpl.Hub](injector)
	if err != nil {
		return err
	}
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		return err
	}
	store, err := do.Invoke[*storageimpl.GCSObjectStore](injector)
	if err != nil {
		return err
	}
	handler, err := do.Invoke[http.Handler](injector)
	if err != nil {
		return err
	}
	hub.RegisterHandler(manager)
	slog.Info("realtime handler registered")

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("startup: http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		discarded := manager.StopAll()
		closed := hub.Close()
		slog.Info("live sessions discarded", "sessions", discarded, "connections", closed)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown failed", "error", err)
		}
		if err := manager.Wait(shutdownCtx); err != nil {
			slog.Warn("session workers still running at shutdown", "error", err)
		}
		if err := store.Close(); err != nil {
			slog.Error("storage client close failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}
