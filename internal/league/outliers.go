package league

import (
	"math"
	"sort"
)

// Outlier is a row whose value falls outside the Tukey fences of its
// outcome group.
type Outlier struct {
	Variable string  `json:"variable"`
	Team     string  `json:"team"`
	Season   int     `json:"season"`
	Outcome  Outcome `json:"outcome"`
	Value    int     `json:"value"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

var outlierVariables = []struct {
	name string
	get  func(*SeasonRow) int
}{
	{"Wins", func(r *SeasonRow) int { return r.Wins }},
	{"Losses", func(r *SeasonRow) int { return r.Losses }},
	{"Draws", func(r *SeasonRow) int { return r.Draws }},
	{"GoalsFor", func(r *SeasonRow) int { return r.GoalsFor }},
	{"GoalsAgainst", func(r *SeasonRow) int { return r.GoalsAgainst }},
}

// FindOutliers applies the 1.5*IQR rule to every counter, separately for
// each outcome group. Groups are visited in order of first appearance.
func FindOutliers(rows []*SeasonRow) []Outlier {
	var order []Outcome
	groups := make(map[Outcome][]*SeasonRow)
	for _, r := range rows {
		if _, ok := groups[r.Outcome]; !ok {
			order = append(order, r.Outcome)
		}
		groups[r.Outcome] = append(groups[r.Outcome], r)
	}

	var out []Outlier
	for _, v := range outlierVariables {
		for _, outcome := range order {
			group := groups[outcome]
			values := make([]float64, len(group))
			for i, r := range group {
				values[i] = float64(v.get(r))
			}
			sort.Float64s(values)

			q1, q3 := Quantile(values, 0.25), Quantile(values, 0.75)
			iqr := q3 - q1
			lower, upper := q1-1.5*iqr, q3+1.5*iqr

			for _, r := range group {
				x := float64(v.get(r))
				if x < lower || x > upper {
					out = append(out, Outlier{
						Variable: v.name,
						Team:     r.Team,
						Season:   r.Season,
						Outcome:  r.Outcome,
						Value:    v.get(r),
						Lower:    lower,
						Upper:    upper,
					})
				}
			}
		}
	}
	return out
}

// Quantile interpolates linearly between the order statistics of sorted.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1:
		return sorted[0]
	}
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}
