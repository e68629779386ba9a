package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/utakatalp/league-history/internal/config"
	"github.com/utakatalp/league-history/internal/league"
	"github.com/utakatalp/league-history/internal/store"
)

// Two seasons of three clubs. Cruz goes down in 2003, Nova comes up in 2004.
const matchLog = `rodata,data,mandante,visitante,mandante_Placar,visitante_Placar,arena
1,10/04/2003,Alfa,Beta,2,0,Arena A
1,10/04/2003,Cruz,Beta,0,1,Arena C
2,17/04/2003,Beta,Alfa,1,1,Arena B
2,17/04/2003,Alfa,Cruz,3,0,Arena A
3,24/04/2003,Beta,Cruz,0,0,Arena B
1,05/04/2004,Alfa,Nova,1,2,Arena A
1,05/04/2004,Nova,Beta,0,0,Arena N
2,12/04/2004,Beta,Alfa,2,2,Arena B
3,20/01/2005,Nova,Alfa,1,0,Arena N
`

const leagueDoc = `name: test
first_season: 2003
last_season: 2004
relegated:
  2003: [Cruz]
season_corrections:
  - after: "2004-12-31"
    before: "2005-02-01"
    season: 2004
tenure_seeds:
  Beta: 2
exclude:
  - team: Nova
    season: 2004
`

func setup(t *testing.T) (string, *config.League) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matches.csv")
	if err := os.WriteFile(path, []byte(matchLog), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := config.ParseLeague([]byte(leagueDoc))
	if err != nil {
		t.Fatalf("league config: %v", err)
	}
	return path, l
}

func TestRun(t *testing.T) {
	path, l := setup(t)
	csv, err := store.NewCSV(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var preview bytes.Buffer

	res, err := Run(context.Background(), Options{
		MatchesPath: path,
		League:      l,
		Cutoff:      38,
		Snapshots:   []store.Snapshotter{csv},
		Model:       csv,
		Preview:     &preview,
		PreviewRows: 20,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == uuid.Nil {
		t.Error("run id not assigned")
	}
	if res.Matches != 9 {
		t.Errorf("matches: want 9, got %d", res.Matches)
	}

	want := map[league.RowKey]struct {
		tenure   int
		promoted bool
		played   int
	}{
		{Team: "Alfa", Season: 2003}: {5, false, 3},
		{Team: "Cruz", Season: 2003}: {0, false, 3},
		{Team: "Beta", Season: 2003}: {2, false, 4},
		{Team: "Alfa", Season: 2004}: {5, false, 3},
		{Team: "Nova", Season: 2004}: {0, true, 3},
		{Team: "Beta", Season: 2004}: {3, false, 2},
	}
	rows := res.Dataset.Rows()
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for _, r := range rows {
		w := want[league.RowKey{Team: r.Team, Season: r.Season}]
		if r.Tenure != w.tenure || r.Promoted != w.promoted || r.Played() != w.played {
			t.Errorf("%s %d: want tenure %d promoted %v played %d, got %d %v %d",
				r.Team, r.Season, w.tenure, w.promoted, w.played, r.Tenure, r.Promoted, r.Played())
		}
	}
	if len(res.Model.Rows) != 5 {
		t.Errorf("excluded row should be dropped from the model matrix, got %d rows", len(res.Model.Rows))
	}

	for _, p := range []string{csv.SeasonPath(2003, 38), csv.SeasonPath(2004, 38), csv.HistoryPath(38), csv.ModelPath(38)} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing snapshot %s: %v", p, err)
		}
	}

	// season snapshots are taken before tenure annotation
	season, err := store.ReadHistory(csv.SeasonPath(2003, 38))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range season {
		if r.Tenure != 0 {
			t.Errorf("season snapshot %s has tenure %d", r.Team, r.Tenure)
		}
	}
	history, err := store.ReadHistory(csv.HistoryPath(38))
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 6 || history[0].Tenure != 5 {
		t.Errorf("unexpected history snapshot: %+v", history)
	}

	if !strings.Contains(preview.String(), "Season 2003") || !strings.Contains(preview.String(), "Season 2004") {
		t.Errorf("preview missing seasons:\n%s", preview.String())
	}
}

func TestRun_Idempotent(t *testing.T) {
	path, l := setup(t)

	run := func() (history, model []byte) {
		csv, err := store.NewCSV(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Run(context.Background(), Options{
			MatchesPath: path,
			League:      l,
			Cutoff:      2,
			Snapshots:   []store.Snapshotter{csv},
			Model:       csv,
		}); err != nil {
			t.Fatalf("Run: %v", err)
		}
		history, _ = os.ReadFile(csv.HistoryPath(2))
		model, _ = os.ReadFile(csv.ModelPath(2))
		return history, model
	}

	h1, m1 := run()
	h2, m2 := run()
	if !bytes.Equal(h1, h2) || !bytes.Equal(m1, m2) {
		t.Error("identical inputs produced different snapshots")
	}
	if len(h1) == 0 || len(m1) == 0 {
		t.Error("snapshots are empty")
	}
}

type failingSnapshotter struct {
	mu      sync.Mutex
	seasons []int
}

var errDiskFull = errors.New("disk full")

func (f *failingSnapshotter) WriteSeason(_ context.Context, table *league.SeasonTable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seasons = append(f.seasons, table.Season)
	if table.Season == 2004 {
		return errDiskFull
	}
	return nil
}

func (f *failingSnapshotter) WriteHistory(context.Context, int, []*league.SeasonRow) error {
	return nil
}

func TestRun_SnapshotError(t *testing.T) {
	path, l := setup(t)
	_, err := Run(context.Background(), Options{
		MatchesPath: path,
		League:      l,
		Cutoff:      38,
		Snapshots:   []store.Snapshotter{&failingSnapshotter{}},
	})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected snapshot error, got %v", err)
	}
}

func TestRun_ParseErrorIsFatal(t *testing.T) {
	_, l := setup(t)
	path := filepath.Join(t.TempDir(), "broken.csv")
	broken := "rodata,data,mandante,visitante,mandante_Placar,visitante_Placar\n1,not-a-date,A,B,1,0\n"
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Run(context.Background(), Options{MatchesPath: path, League: l, Cutoff: 38})
	var pe *league.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestRun_NoLeague(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Error("expected error without league configuration")
	}
}
