// Package main is the entry point for the restfdw API server. It serves the
// foreign tables over HTTP and refreshes scheduled tables in the background.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/errgroup"

	"duck-restfdw/internal/api"
	"duck-restfdw/internal/config"
	internaldb "duck-restfdw/internal/db"
	"duck-restfdw/internal/db/repository"
	"duck-restfdw/internal/engine"
	"duck-restfdw/internal/refresh"
	"duck-restfdw/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	tables, err := config.LoadTables(cfg.TablesFile)
	if err != nil {
		return fmt.Errorf("tables: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	writeDB, readDB, err := internaldb.Open(cfg.MetaDBPath)
	if err != nil {
		return fmt.Errorf("open metadata db: %w", err)
	}
	defer readDB.Close()  //nolint:errcheck
	defer writeDB.Close() //nolint:errcheck

	duck, err := sql.Open("duckdb", cfg.DuckDBPath)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer duck.Close() //nolint:errcheck

	tr := transport.NewHTTPTransport(
		transport.WithTimeout(cfg.HTTPTimeout),
		transport.WithRateLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		transport.WithLogger(logger),
	)
	history := repository.NewScanHistoryRepo(writeDB, readDB)
	scanner := engine.NewScanner(tables, tr, history, logger)
	mat := engine.NewMaterializer(duck, scanner, logger)
	query := engine.NewQueryService(duck, mat)

	sched := refresh.NewScheduler(mat, tables, logger)
	handler := api.NewHandler(mat, query, history, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(ctx, handler, cfg, logger),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("restfdw server listening", "addr", cfg.ListenAddr, "tables", len(tables.Tables))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
