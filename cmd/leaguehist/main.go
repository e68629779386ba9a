package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/utakatalp/league-history/internal/api"
	"github.com/utakatalp/league-history/internal/config"
	"github.com/utakatalp/league-history/internal/pipeline"
	"github.com/utakatalp/league-history/internal/store"
)

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.MatchesPath, "matches", cfg.MatchesPath, "Match log CSV path")
	flag.StringVar(&cfg.LeaguePath, "league", cfg.LeaguePath, "League history YAML (empty = embedded Brasileirão tables)")
	flag.IntVar(&cfg.CutoffRound, "round", cfg.CutoffRound, "Last round counted into each season table")
	flag.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Snapshot output directory")
	flag.StringVar(&cfg.PostgresURL, "postgres", cfg.PostgresURL, "Postgres URL for snapshots (optional)")
	flag.StringVar(&cfg.HTTPAddr, "serve", cfg.HTTPAddr, "Serve the finished run on this address (optional)")
	flag.BoolVar(&cfg.PrintPreview, "preview", cfg.PrintPreview, "Print each season table to stdout")
	flag.IntVar(&cfg.PreviewRows, "preview-rows", cfg.PreviewRows, "Rows per season in the preview")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		// logger is not built yet
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	leagueCfg, err := config.LoadLeague(cfg.LeaguePath)
	if err != nil {
		sugar.Fatalw("Failed to load league configuration", "error", err)
	}

	csvStore, err := store.NewCSV(cfg.OutputDir)
	if err != nil {
		sugar.Fatalw("Failed to prepare output directory", "error", err)
	}
	snapshots := []store.Snapshotter{csvStore}

	runID := uuid.New()
	if cfg.PostgresURL != "" {
		pg, err := store.NewStore(ctx, cfg.PostgresURL)
		if err != nil {
			sugar.Fatalw("Failed to connect to Postgres", "error", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			sugar.Fatalw("Failed to migrate Postgres", "error", err)
		}
		if err := pg.BeginRun(ctx, runID, leagueCfg.Name, cfg.CutoffRound); err != nil {
			sugar.Fatalw("Failed to register run", "error", err)
		}
		snapshots = append(snapshots, pg)
		defer func() {
			if err := pg.FinishRun(context.Background()); err != nil {
				sugar.Warnw("Failed to finish run", "error", err)
			}
		}()
	}

	opts := pipeline.Options{
		MatchesPath: cfg.MatchesPath,
		League:      leagueCfg,
		Cutoff:      cfg.CutoffRound,
		Snapshots:   snapshots,
		Model:       csvStore,
		RunID:       runID,
		Logger:      logger,
	}
	if cfg.PrintPreview {
		opts.Preview = os.Stdout
		opts.PreviewRows = cfg.PreviewRows
	}

	result, err := pipeline.Run(ctx, opts)
	if err != nil {
		sugar.Fatalw("Pipeline failed", "error", err)
	}
	sugar.Infow("Snapshots written",
		"history", csvStore.HistoryPath(cfg.CutoffRound),
		"model", csvStore.ModelPath(cfg.CutoffRound),
	)

	if cfg.HTTPAddr == "" {
		return
	}
	serve(ctx, cfg, api.New(result, logger), logger)
}

func serve(ctx context.Context, cfg *config.Config, h *api.Handler, logger *zap.Logger) {
	sugar := logger.Sugar()
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("Server shutdown", "error", err)
		}
	}()

	sugar.Infow("Serving snapshot", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Errorw("Server failed", "error", err)
	}
}
