package league

import (
	"fmt"
	"strconv"
)

// HistoryHeader is the column order of the concatenated table.
var HistoryHeader = []string{
	"Team", "Season", "Wins", "Draws", "Losses",
	"GoalsFor", "GoalsAgainst", "PromotedFlag", "Outcome", "Tenure",
}

// ModelHeader is the column order of the feature matrix. The label is last.
var ModelHeader = []string{
	"Wins", "Draws", "Losses", "GoalsFor", "GoalsAgainst", "Tenure", "Label",
}

// Record renders the row in HistoryHeader order.
func (r SeasonRow) Record() []string {
	return []string{
		r.Team,
		strconv.Itoa(r.Season),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Draws),
		strconv.Itoa(r.Losses),
		strconv.Itoa(r.GoalsFor),
		strconv.Itoa(r.GoalsAgainst),
		strconv.Itoa(boolInt(r.Promoted)),
		string(r.Outcome),
		strconv.Itoa(r.Tenure),
	}
}

// ParseRecord is the inverse of SeasonRow.Record.
func ParseRecord(rec []string) (*SeasonRow, error) {
	if len(rec) != len(HistoryHeader) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(HistoryHeader), len(rec))
	}
	r := &SeasonRow{Team: rec[0], Outcome: Outcome(rec[8])}
	if r.Outcome != Stayed && r.Outcome != Relegated {
		return nil, fmt.Errorf("unknown outcome %q", rec[8])
	}
	var promoted int
	for i, dst := range []*int{&r.Season, &r.Wins, &r.Draws, &r.Losses, &r.GoalsFor, &r.GoalsAgainst, &promoted} {
		v, err := strconv.Atoi(rec[i+1])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", HistoryHeader[i+1], err)
		}
		*dst = v
	}
	tenure, err := strconv.Atoi(rec[9])
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", HistoryHeader[9], err)
	}
	r.Promoted = promoted == 1
	r.Tenure = tenure
	return r, nil
}

// ModelRow is one feature vector. Label is 1 for Stayed, 0 for Relegated.
type ModelRow struct {
	Wins         int `json:"wins"`
	Draws        int `json:"draws"`
	Losses       int `json:"losses"`
	GoalsFor     int `json:"goals_for"`
	GoalsAgainst int `json:"goals_against"`
	Tenure       int `json:"tenure"`
	Label        int `json:"label"`
}

// Record renders the row in ModelHeader order.
func (m ModelRow) Record() []string {
	return []string{
		strconv.Itoa(m.Wins),
		strconv.Itoa(m.Draws),
		strconv.Itoa(m.Losses),
		strconv.Itoa(m.GoalsFor),
		strconv.Itoa(m.GoalsAgainst),
		strconv.Itoa(m.Tenure),
		strconv.Itoa(m.Label),
	}
}

// ModelTable is the dataset handed to the classifiers.
type ModelTable struct {
	Rows []ModelRow `json:"rows"`
}

// Features returns the matrix without the label column.
func (t ModelTable) Features() [][]int {
	out := make([][]int, len(t.Rows))
	for i, m := range t.Rows {
		out[i] = []int{m.Wins, m.Draws, m.Losses, m.GoalsFor, m.GoalsAgainst, m.Tenure}
	}
	return out
}

// Labels returns the label column.
func (t ModelTable) Labels() []int {
	out := make([]int, len(t.Rows))
	for i, m := range t.Rows {
		out[i] = m.Label
	}
	return out
}

// ModelMatrix drops the identifiers and the promotion flag and encodes the
// outcome as a binary label.
func ModelMatrix(rows []*SeasonRow) ModelTable {
	out := ModelTable{Rows: make([]ModelRow, 0, len(rows))}
	for _, r := range rows {
		label := 0
		if r.Outcome == Stayed {
			label = 1
		}
		out.Rows = append(out.Rows, ModelRow{
			Wins:         r.Wins,
			Draws:        r.Draws,
			Losses:       r.Losses,
			GoalsFor:     r.GoalsFor,
			GoalsAgainst: r.GoalsAgainst,
			Tenure:       r.Tenure,
			Label:        label,
		})
	}
	return out
}

// Exclude returns rows without the given (team, season) keys. The input
// slice is not modified.
func Exclude(rows []*SeasonRow, keys []RowKey) []*SeasonRow {
	if len(keys) == 0 {
		return rows
	}
	drop := make(map[RowKey]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	out := make([]*SeasonRow, 0, len(rows))
	for _, r := range rows {
		if _, ok := drop[RowKey{Team: r.Team, Season: r.Season}]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
