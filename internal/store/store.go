package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/utakatalp/league-history/internal/league"
)

// Snapshotter persists per-season tables and the final concatenation.
type Snapshotter interface {
	WriteSeason(ctx context.Context, table *league.SeasonTable) error
	WriteHistory(ctx context.Context, cutoff int, rows []*league.SeasonRow) error
}

// Store wraps a Postgres connection and keeps one snapshot set per run.
type Store struct {
	DB    *sql.DB
	RunID uuid.UUID
}

// NewStore opens a Postgres connection using the given connection string.
func NewStore(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// verify early
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Migrate creates the necessary tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS runs (
        id           UUID        PRIMARY KEY,
        league       TEXT        NOT NULL,
        cutoff_round INT         NOT NULL,
        started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        finished_at  TIMESTAMPTZ
    );
    `,
		`CREATE TABLE IF NOT EXISTS season_rows (
		    run_id        UUID    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		    season        INT     NOT NULL,
		    position      INT     NOT NULL,
		    team          TEXT    NOT NULL,
		    wins          INT     NOT NULL DEFAULT 0,
		    draws         INT     NOT NULL DEFAULT 0,
		    losses        INT     NOT NULL DEFAULT 0,
		    goals_for     INT     NOT NULL DEFAULT 0,
		    goals_against INT     NOT NULL DEFAULT 0,
		    promoted      BOOLEAN NOT NULL DEFAULT false,
		    outcome       TEXT    NOT NULL,
		    tenure        INT     NOT NULL DEFAULT 0,
		    PRIMARY KEY (run_id, season, team)
		);`,
	}
	for _, q := range queries {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// BeginRun registers a run; later writes are stamped with its id.
func (s *Store) BeginRun(ctx context.Context, runID uuid.UUID, leagueName string, cutoff int) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, league, cutoff_round) VALUES ($1, $2, $3)`,
		runID, leagueName, cutoff,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", runID, err)
	}
	s.RunID = runID
	return nil
}

// FinishRun marks the run as complete.
func (s *Store) FinishRun(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE runs SET finished_at = now() WHERE id = $1`, s.RunID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", s.RunID, err)
	}
	return nil
}

const upsertRow = `
INSERT INTO season_rows (
    run_id, season, position, team,
    wins, draws, losses, goals_for, goals_against,
    promoted, outcome, tenure
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (run_id, season, team) DO UPDATE SET
    position      = EXCLUDED.position,
    wins          = EXCLUDED.wins,
    draws         = EXCLUDED.draws,
    losses        = EXCLUDED.losses,
    goals_for     = EXCLUDED.goals_for,
    goals_against = EXCLUDED.goals_against,
    promoted      = EXCLUDED.promoted,
    outcome       = EXCLUDED.outcome,
    tenure        = EXCLUDED.tenure
`

// WriteSeason stores one season's table for the current run.
func (s *Store) WriteSeason(ctx context.Context, table *league.SeasonTable) error {
	if err := s.upsert(ctx, table.Rows, func(i int) int { return i }); err != nil {
		return fmt.Errorf("season %d: %w", table.Season, err)
	}
	return nil
}

// WriteHistory stores the annotated rows, overwriting the per-season
// snapshots of the same run.
func (s *Store) WriteHistory(ctx context.Context, cutoff int, rows []*league.SeasonRow) error {
	// position restarts at every season boundary
	positions := make([]int, len(rows))
	for i := range rows {
		if i > 0 && rows[i].Season == rows[i-1].Season {
			positions[i] = positions[i-1] + 1
		}
	}
	if err := s.upsert(ctx, rows, func(i int) int { return positions[i] }); err != nil {
		return fmt.Errorf("history round %d: %w", cutoff, err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, rows []*league.SeasonRow, position func(int) int) error {
	if s.RunID == uuid.Nil {
		return fmt.Errorf("no run started")
	}

	// 1) Begin a transaction
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// 2) Prepare the upsert once for all rows
	stmt, err := tx.PrepareContext(ctx, upsertRow)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			s.RunID, r.Season, position(i), r.Team,
			r.Wins, r.Draws, r.Losses, r.GoalsFor, r.GoalsAgainst,
			r.Promoted, string(r.Outcome), r.Tenure,
		); err != nil {
			return fmt.Errorf("upserting %s %d: %w", r.Team, r.Season, err)
		}
	}

	// 3) Commit
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadHistory fetches a run's rows in season then table order.
func (s *Store) LoadHistory(ctx context.Context, runID uuid.UUID) ([]*league.SeasonRow, error) {
	const q = `
    SELECT
      team,
      season,
      wins,
      draws,
      losses,
      goals_for,
      goals_against,
      promoted,
      outcome,
      tenure
    FROM season_rows
    WHERE run_id = $1
    ORDER BY season, position
    `
	rows, err := s.DB.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []*league.SeasonRow
	for rows.Next() {
		r := &league.SeasonRow{}
		var outcome string
		if err := rows.Scan(
			&r.Team,
			&r.Season,
			&r.Wins,
			&r.Draws,
			&r.Losses,
			&r.GoalsFor,
			&r.GoalsAgainst,
			&r.Promoted,
			&outcome,
			&r.Tenure,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Outcome = league.Outcome(outcome)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run and its rows.
func (s *Store) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM runs WHERE id = $1;`, runID)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	return nil
}
