package league

// Outcome is a team's end-of-season result.
type Outcome string

const (
	Stayed    Outcome = "Stayed"
	Relegated Outcome = "Relegated"
)

// Match represents one fixture from the match log.
type Match struct {
	Season    int
	Round     int
	Home      string
	Away      string
	HomeGoals int
	AwayGoals int
}

// SeasonRow holds one team's aggregate for one season.
type SeasonRow struct {
	Team         string  `json:"team"`
	Season       int     `json:"season"`
	Wins         int     `json:"wins"`
	Draws        int     `json:"draws"`
	Losses       int     `json:"losses"`
	GoalsFor     int     `json:"goals_for"`
	GoalsAgainst int     `json:"goals_against"`
	Promoted     bool    `json:"promoted"`
	Outcome      Outcome `json:"outcome"`
	Tenure       int     `json:"tenure"`
}

// Played is the number of matches counted into the row.
func (r SeasonRow) Played() int {
	return r.Wins + r.Draws + r.Losses
}

// SeasonTable is the standings of one season up to a cutoff round.
type SeasonTable struct {
	Season int
	Cutoff int
	Rows   []*SeasonRow

	index map[string]*SeasonRow
}

func newSeasonTable(season, cutoff int) *SeasonTable {
	return &SeasonTable{
		Season: season,
		Cutoff: cutoff,
		index:  make(map[string]*SeasonRow),
	}
}

func (t *SeasonTable) add(team string) *SeasonRow {
	if r, ok := t.index[team]; ok {
		return r
	}
	r := &SeasonRow{Team: team, Season: t.Season, Outcome: Stayed}
	t.Rows = append(t.Rows, r)
	t.index[team] = r
	return r
}

// Row returns the team's row, or nil when the team did not take part.
func (t *SeasonTable) Row(team string) *SeasonRow {
	if t == nil {
		return nil
	}
	if t.index == nil {
		t.reindex()
	}
	return t.index[team]
}

// Has reports whether team is a participant of the season.
func (t *SeasonTable) Has(team string) bool {
	return t.Row(team) != nil
}

// Teams lists participants in table order.
func (t *SeasonTable) Teams() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Team
	}
	return out
}

// Promote flags the named teams as promoted. Names that are not
// participants are ignored.
func (t *SeasonTable) Promote(teams []string) {
	for _, name := range teams {
		if r := t.Row(name); r != nil {
			r.Promoted = true
		}
	}
}

func (t *SeasonTable) reindex() {
	t.index = make(map[string]*SeasonRow, len(t.Rows))
	for _, r := range t.Rows {
		t.index[r.Team] = r
	}
}

// Dataset is the longitudinal concatenation of season tables.
type Dataset struct {
	Cutoff  int
	Seasons []*SeasonTable
}

// Rows returns every row, in season order then table order.
func (d *Dataset) Rows() []*SeasonRow {
	n := 0
	for _, s := range d.Seasons {
		n += len(s.Rows)
	}
	out := make([]*SeasonRow, 0, n)
	for _, s := range d.Seasons {
		out = append(out, s.Rows...)
	}
	return out
}

// Season returns the table for year, or nil.
func (d *Dataset) Season(year int) *SeasonTable {
	for _, s := range d.Seasons {
		if s.Season == year {
			return s
		}
	}
	return nil
}

// RowKey identifies a (team, season) row.
type RowKey struct {
	Team   string `yaml:"team" json:"team" validate:"required"`
	Season int    `yaml:"season" json:"season" validate:"required"`
}
