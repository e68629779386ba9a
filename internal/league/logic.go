// internal/league/logic.go
package league

import (
	"fmt"
	"io"
)

// DefaultTenureCap is the ceiling of the consecutive-seasons counter.
const DefaultTenureCap = 5

// BuildSeason computes one season's table from the match log.
// Participants are the season's home teams in order of first appearance,
// counted over every round. Only matches up to cutoff feed the counters.
// Relegated names that did not take part are ignored.
func BuildSeason(
	matches []Match,
	season, cutoff int,
	relegated []string,
	prior *SeasonTable, // nil for the first season of a run
) *SeasonTable {
	table := newSeasonTable(season, cutoff)

	// 1) participants: away-only teams are never discovered
	for _, m := range matches {
		if m.Season == season {
			table.add(m.Home)
		}
	}

	// 2) outcome
	for _, name := range relegated {
		if r := table.Row(name); r != nil {
			r.Outcome = Relegated
		}
	}

	// 3) promoted = not in last season's table
	if prior != nil {
		for _, r := range table.Rows {
			if !prior.Has(r.Team) {
				r.Promoted = true
			}
		}
	}

	// 4) accumulate up to the cutoff
	for _, m := range matches {
		if m.Season != season || m.Round > cutoff {
			continue
		}
		home, away := table.Row(m.Home), table.Row(m.Away)
		// away-only team: no row, but the home side is still counted
		if away == nil {
			away = &SeasonRow{}
		}

		home.GoalsFor += m.HomeGoals
		home.GoalsAgainst += m.AwayGoals
		away.GoalsFor += m.AwayGoals
		away.GoalsAgainst += m.HomeGoals

		switch {
		case m.HomeGoals > m.AwayGoals:
			home.Wins++
			away.Losses++
		case m.HomeGoals < m.AwayGoals:
			away.Wins++
			home.Losses++
		default:
			home.Draws++
			away.Draws++
		}
	}

	return table
}

// Aggregate folds BuildSeason over seasons in the given order, passing
// each finished table as the prior of the next one. Seasons listed in
// promotion get those teams flagged on top of what the prior table
// implies; that is the only source of promotion for the first season.
// onSeason, when not nil, is called with every finished table in order
// and aborts the fold on error.
func Aggregate(
	matches []Match,
	seasons []int,
	cutoff int,
	relegation map[int][]string,
	promotion map[int][]string,
	onSeason func(*SeasonTable) error,
) (*Dataset, error) {
	ds := &Dataset{Cutoff: cutoff, Seasons: make([]*SeasonTable, 0, len(seasons))}

	var prior *SeasonTable
	for _, season := range seasons {
		table := BuildSeason(matches, season, cutoff, relegation[season], prior)
		table.Promote(promotion[season])

		if onSeason != nil {
			if err := onSeason(table); err != nil {
				return nil, fmt.Errorf("season %d: %w", season, err)
			}
		}
		ds.Seasons = append(ds.Seasons, table)
		prior = table
	}
	return ds, nil
}

// TenureSeeds configures the first season of the tenure scan.
type TenureSeeds struct {
	// Seeds are explicit tenures for first-season teams with known history.
	Seeds map[string]int
	// Cap bounds the counter; DefaultTenureCap when zero.
	Cap int
}

// AnnotateTenure sets every row's consecutive-seasons counter in place.
//
// First-season rows take their seed; the rest of that season, when neither
// relegated nor promoted, start at the cap. Afterwards each Stayed row
// hands tenure+1 (capped) to the same team's row in the next season.
func AnnotateTenure(ds *Dataset, seeds TenureSeeds) {
	if len(ds.Seasons) == 0 {
		return
	}
	limit := seeds.Cap
	if limit <= 0 {
		limit = DefaultTenureCap
	}

	rows := ds.Rows()
	byKey := make(map[RowKey]*SeasonRow, len(rows))
	for _, r := range rows {
		r.Tenure = 0
		byKey[RowKey{Team: r.Team, Season: r.Season}] = r
	}

	for _, r := range ds.Seasons[0].Rows {
		if seed, ok := seeds.Seeds[r.Team]; ok {
			r.Tenure = min(seed, limit)
			continue
		}
		if r.Outcome != Relegated && !r.Promoted {
			r.Tenure = limit
		}
	}

	for _, r := range rows {
		if r.Outcome != Stayed {
			continue
		}
		next, ok := byKey[RowKey{Team: r.Team, Season: r.Season + 1}]
		if !ok {
			continue
		}
		next.Tenure = min(r.Tenure+1, limit)
	}
}

// SeasonRange lists first..last inclusive.
func SeasonRange(first, last int) []int {
	if last < first {
		return nil
	}
	out := make([]int, 0, last-first+1)
	for y := first; y <= last; y++ {
		out = append(out, y)
	}
	return out
}

// PrintTable writes the first limit rows of a season table; limit <= 0
// prints all of them.
func PrintTable(w io.Writer, label string, table *SeasonTable, limit int) {
	fmt.Fprintln(w, label)
	fmt.Fprintf(w, "%-20s %2s %2s %2s %3s %3s %3s %-9s %3s",
		"Team", "W", "D", "L", "GF", "GA", "Up", "Outcome", "Ten")
	for i, r := range table.Rows {
		if limit > 0 && i >= limit {
			break
		}
		up := 0
		if r.Promoted {
			up = 1
		}
		fmt.Fprintf(w, "\n%-20s %2d %2d %2d %3d %3d %3d %-9s %3d",
			r.Team,
			r.Wins,
			r.Draws,
			r.Losses,
			r.GoalsFor,
			r.GoalsAgainst,
			up,
			r.Outcome,
			r.Tenure,
		)
	}
	fmt.Fprintln(w)
}
