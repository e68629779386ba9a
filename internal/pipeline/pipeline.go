// Package pipeline runs the batch that turns a match log into the
// historical standings dataset:
// - load and normalize the match log
// - fold the season builder over the configured seasons, in order
// - snapshot each season, annotate tenure, write the final tables
//
// The season fold is sequential. Only snapshot writes run concurrently,
// and only after the fold is complete.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utakatalp/league-history/internal/config"
	"github.com/utakatalp/league-history/internal/league"
	"github.com/utakatalp/league-history/internal/store"
)

// Prometheus metrics
var (
	matchesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguehist_matches_loaded_total",
		Help: "Total number of matches read from the match log",
	})

	seasonsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguehist_seasons_built_total",
		Help: "Total number of season tables built",
	})

	rowsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguehist_season_rows_total",
		Help: "Total number of team-season rows produced",
	})

	snapshotsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaguehist_snapshots_written_total",
		Help: "Total number of snapshot tables written, by kind",
	}, []string{"kind"})

	outliersFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leaguehist_outliers",
		Help: "Outliers flagged in the last run",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leaguehist_run_duration_seconds",
		Help:    "Duration of a full pipeline run",
		Buckets: prometheus.DefBuckets,
	})
)

// ModelWriter receives the formatted feature matrix.
type ModelWriter interface {
	WriteModel(ctx context.Context, cutoff int, m league.ModelTable) error
}

// Options configures a run
type Options struct {
	MatchesPath string
	League      *config.League
	Cutoff      int

	Snapshots []store.Snapshotter
	Model     ModelWriter // optional
	// SnapshotWorkers bounds concurrent season snapshot writes.
	SnapshotWorkers int

	// Preview, when set, receives the first PreviewRows rows of every season.
	Preview     io.Writer
	PreviewRows int

	RunID  uuid.UUID
	Logger *zap.Logger
}

// Result is the outcome of a finished run.
type Result struct {
	RunID    uuid.UUID
	Dataset  *league.Dataset
	Model    league.ModelTable
	Outliers []league.Outlier
	Matches  int
	Duration time.Duration
}

// Run executes the whole batch.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.League == nil {
		return nil, fmt.Errorf("no league configuration")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SnapshotWorkers <= 0 {
		opts.SnapshotWorkers = 4
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	logger := opts.Logger.Sugar().With("run", opts.RunID.String())
	start := time.Now()

	loadOpts, err := opts.League.LoadOptions()
	if err != nil {
		return nil, err
	}
	matches, err := league.LoadMatches(opts.MatchesPath, loadOpts)
	if err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}
	matchesLoaded.Add(float64(len(matches)))
	logger.Infow("Match log loaded", "path", opts.MatchesPath, "matches", len(matches))

	ds, err := Build(matches, opts.League, opts.Cutoff, func(table *league.SeasonTable) error {
		seasonsBuilt.Inc()
		rowsBuilt.Add(float64(len(table.Rows)))
		logger.Infow("Season table built",
			"season", table.Season,
			"teams", len(table.Rows),
			"cutoff", table.Cutoff,
		)
		if opts.Preview != nil {
			league.PrintTable(opts.Preview, fmt.Sprintf("Season %d", table.Season), table, opts.PreviewRows)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Season snapshots carry no tenure, so they go out before annotation.
	if err := writeSeasons(ctx, opts.Snapshots, ds.Seasons, opts.SnapshotWorkers); err != nil {
		return nil, err
	}

	league.AnnotateTenure(ds, opts.League.Seeds())
	rows := ds.Rows()

	for _, s := range opts.Snapshots {
		if err := s.WriteHistory(ctx, opts.Cutoff, rows); err != nil {
			return nil, fmt.Errorf("writing history: %w", err)
		}
		snapshotsWritten.WithLabelValues("history").Inc()
	}

	model := league.ModelMatrix(league.Exclude(rows, opts.League.Exclude))
	if opts.Model != nil {
		if err := opts.Model.WriteModel(ctx, opts.Cutoff, model); err != nil {
			return nil, fmt.Errorf("writing model matrix: %w", err)
		}
		snapshotsWritten.WithLabelValues("model").Inc()
	}

	outliers := league.FindOutliers(rows)
	outliersFound.Set(float64(len(outliers)))
	for _, o := range outliers {
		logger.Debugw("Outlier",
			"variable", o.Variable,
			"team", o.Team,
			"season", o.Season,
			"outcome", o.Outcome,
			"value", o.Value,
		)
	}

	elapsed := time.Since(start)
	runDuration.Observe(elapsed.Seconds())
	logger.Infow("Historical dataset complete",
		"seasons", len(ds.Seasons),
		"rows", len(rows),
		"model_rows", len(model.Rows),
		"outliers", len(outliers),
		"elapsed", elapsed,
	)

	return &Result{
		RunID:    opts.RunID,
		Dataset:  ds,
		Model:    model,
		Outliers: outliers,
		Matches:  len(matches),
		Duration: elapsed,
	}, nil
}

// Build runs the season fold with the league's tables and no I/O.
func Build(matches []league.Match, cfg *config.League, cutoff int, onSeason func(*league.SeasonTable) error) (*league.Dataset, error) {
	ds, err := league.Aggregate(matches, cfg.Seasons(), cutoff, cfg.Relegated, cfg.Promoted, onSeason)
	if err != nil {
		return nil, fmt.Errorf("aggregating seasons: %w", err)
	}
	return ds, nil
}

func writeSeasons(ctx context.Context, snapshots []store.Snapshotter, tables []*league.SeasonTable, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, s := range snapshots {
		for _, table := range tables {
			s, table := s, table
			g.Go(func() error {
				if err := s.WriteSeason(ctx, table); err != nil {
					return fmt.Errorf("writing season %d: %w", table.Season, err)
				}
				snapshotsWritten.WithLabelValues("season").Inc()
				return nil
			})
		}
	}
	return g.Wait()
}
