package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/utakatalp/league-history/internal/league"
)

// CSV writes snapshots as flat files under Dir.
type CSV struct {
	Dir string
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	return &CSV{Dir: dir}, nil
}

func (c *CSV) SeasonPath(season, cutoff int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("season_%d_round%d.csv", season, cutoff))
}

func (c *CSV) HistoryPath(cutoff int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("history_round%d.csv", cutoff))
}

func (c *CSV) ModelPath(cutoff int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("model_round%d.csv", cutoff))
}

// WriteSeason writes one season table.
func (c *CSV) WriteSeason(_ context.Context, table *league.SeasonTable) error {
	return c.writeRows(c.SeasonPath(table.Season, table.Cutoff), table.Rows)
}

// WriteHistory writes the concatenated table.
func (c *CSV) WriteHistory(_ context.Context, cutoff int, rows []*league.SeasonRow) error {
	return c.writeRows(c.HistoryPath(cutoff), rows)
}

// WriteModel writes the feature matrix with the label last.
func (c *CSV) WriteModel(_ context.Context, cutoff int, m league.ModelTable) error {
	records := make([][]string, 0, len(m.Rows)+1)
	records = append(records, league.ModelHeader)
	for _, r := range m.Rows {
		records = append(records, r.Record())
	}
	return writeFile(c.ModelPath(cutoff), records)
}

func (c *CSV) writeRows(path string, rows []*league.SeasonRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, league.HistoryHeader)
	for _, r := range rows {
		records = append(records, r.Record())
	}
	return writeFile(path, records)
}

// writeFile goes through a temp file so readers never see a partial table.
func writeFile(path string, records [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadHistory parses a history file written by WriteHistory.
func ReadHistory(path string) ([]*league.SeasonRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	out := make([]*league.SeasonRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		r, err := league.ParseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}
