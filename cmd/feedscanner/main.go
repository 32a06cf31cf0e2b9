// Command feedscanner runs the procurement announcement scanner: scheduled
// feed polling and document enrichment for the configured departments, with
// an HTTP API for queries and on-demand runs.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kendricksin/feed-scanner/internal/analyzer"
	"github.com/kendricksin/feed-scanner/internal/api"
	"github.com/kendricksin/feed-scanner/internal/config"
	"github.com/kendricksin/feed-scanner/internal/dbopen"
	"github.com/kendricksin/feed-scanner/internal/egp"
	"github.com/kendricksin/feed-scanner/internal/fetch"
	"github.com/kendricksin/feed-scanner/internal/pipeline"
	"github.com/kendricksin/feed-scanner/internal/scheduler"
	"github.com/kendricksin/feed-scanner/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DatabasePath, dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
	if err != nil {
		logger.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st := store.New(db)

	fetchCfg := fetch.Config{
		Timeout:  cfg.FetchTimeout(),
		MaxBytes: cfg.MaxFetchBytes,
	}
	if cfg.AllowAnyHost {
		fetchCfg.URLValidator = fetch.AllowAnyHost
	}
	fetcher := fetch.New(fetchCfg)

	gateway := egp.NewClient(fetcher, egp.Config{
		InfoURL:     cfg.InfoURL,
		DownloadURL: cfg.DownloadURL,
	}, logger)

	var docAnalyzer pipeline.Analyzer
	if cfg.Analyzer.Enabled() {
		docAnalyzer = analyzer.NewClient(cfg.Analyzer)
		logger.Info("analyzer enabled", "model", cfg.Analyzer.Model)
	}

	stages := []pipeline.Stage{
		pipeline.NewFeedIngestor(st, fetcher, cfg.FeedURL, logger),
		pipeline.NewDocumentPipeline(st, gateway, fetcher, cfg.DataDir, docAnalyzer, logger),
	}
	orch := pipeline.NewOrchestrator(stages, cfg.DepartmentIDs(), logger)

	sched, err := scheduler.New(orch, cfg.ScheduleTimes, cfg.DepartmentIDs(), logger)
	if err != nil {
		logger.Error("scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()

	server, err := api.New(st, sched, cfg.AuthPassword, logger)
	if err != nil {
		logger.Error("api", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Listen, "departments", cfg.DepartmentIDs())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	sched.Stop()
	logger.Info("stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
