// Package main provides the standalone HTTP API server for optiview.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/optiview/optiview/internal/config"
	"github.com/optiview/optiview/internal/events"
	"github.com/optiview/optiview/internal/llm"
	"github.com/optiview/optiview/internal/metrics"
	"github.com/optiview/optiview/internal/server"
	"github.com/optiview/optiview/internal/service"
	"github.com/optiview/optiview/internal/store"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	slog.SetDefault(logger)
	defer func() { _ = cleanup() }()

	listenAddr := cfg.ServerAddr
	if *addr != "" {
		listenAddr = *addr
	}
	slog.Info("starting optiview-server", "addr", listenAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.New(ctx, store.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := st.InitSchema(initCtx); err != nil {
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	if *wipeDB || os.Getenv("OPTIVIEW_WIPE_DB") == "true" {
		if err := st.WipeData(initCtx); err != nil {
			slog.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	var model service.Model
	if m, err := llm.NewModel(cfg); err != nil {
		slog.Warn("LLM model unavailable, query generation disabled", "error", err)
	} else {
		model = m
	}

	hub := server.NewHub()
	collector := metrics.NewCollector()
	svc := service.New(cfg, st, embedder, model, events.Fanout(events.LogSink{}, hub), collector)

	srv := server.New(listenAddr, svc, hub, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(runCtx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
