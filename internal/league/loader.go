package league

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the day-first layout of the reference match log.
const DateLayout = "02/01/2006"

// Columns names the match log headers the loader reads.
type Columns struct {
	Date      string   `yaml:"date" validate:"required"`
	Round     string   `yaml:"round" validate:"required"`
	Home      string   `yaml:"home" validate:"required"`
	Away      string   `yaml:"away" validate:"required"`
	HomeGoals string   `yaml:"home_goals" validate:"required"`
	AwayGoals string   `yaml:"away_goals" validate:"required"`
	Aliases   []string `yaml:"round_aliases"`
}

// DefaultColumns matches the Brasileirão full-history export.
func DefaultColumns() Columns {
	return Columns{
		Date:      "data",
		Round:     "rodata",
		Home:      "mandante",
		Away:      "visitante",
		HomeGoals: "mandante_Placar",
		AwayGoals: "visitante_Placar",
		Aliases:   []string{"rodada"},
	}
}

// SeasonCorrection moves matches played strictly between After and
// Before into Season.
type SeasonCorrection struct {
	After  time.Time
	Before time.Time
	Season int
}

func (c SeasonCorrection) applies(d time.Time) bool {
	return d.After(c.After) && d.Before(c.Before)
}

// LoadOptions configures match log parsing.
type LoadOptions struct {
	Columns     Columns
	DateLayout  string
	Corrections []SeasonCorrection
}

// ParseError reports a malformed field in the match log.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: column %q: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

var errShortRecord = errors.New("short record")

// LoadMatches reads the match log at path.
func LoadMatches(path string, opts LoadOptions) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening match log: %w", err)
	}
	defer f.Close()

	matches, err := ReadMatches(f, opts)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return matches, nil
}

// ReadMatches parses a CSV match log with a header row. Columns the
// loader does not need are dropped; any malformed field aborts the load.
func ReadMatches(r io.Reader, opts LoadOptions) ([]Match, error) {
	cols := opts.Columns
	if cols.Date == "" {
		cols = DefaultColumns()
	}
	layout := opts.DateLayout
	if layout == "" {
		layout = DateLayout
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	lookup := func(name string, aliases ...string) (int, error) {
		for _, n := range append([]string{name}, aliases...) {
			if i, ok := pos[n]; ok {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}

	var idx struct{ date, round, home, away, hg, ag int }
	for _, c := range []struct {
		dst     *int
		name    string
		aliases []string
	}{
		{&idx.date, cols.Date, nil},
		{&idx.round, cols.Round, cols.Aliases},
		{&idx.home, cols.Home, nil},
		{&idx.away, cols.Away, nil},
		{&idx.hg, cols.HomeGoals, nil},
		{&idx.ag, cols.AwayGoals, nil},
	} {
		if *c.dst, err = lookup(c.name, c.aliases...); err != nil {
			return nil, err
		}
	}
	width := max(idx.date, idx.round, idx.home, idx.away, idx.hg, idx.ag) + 1

	var matches []Match
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < width {
			return nil, &ParseError{Line: line, Column: "*", Value: strings.Join(rec, ","), Err: errShortRecord}
		}

		field := func(i int) string { return strings.TrimSpace(rec[i]) }
		number := func(i int, name string) (int, error) {
			v, err := strconv.Atoi(field(i))
			if err != nil {
				return 0, &ParseError{Line: line, Column: name, Value: field(i), Err: err}
			}
			return v, nil
		}

		date, err := time.Parse(layout, field(idx.date))
		if err != nil {
			return nil, &ParseError{Line: line, Column: cols.Date, Value: field(idx.date), Err: err}
		}
		m := Match{
			Season: seasonOf(date, opts.Corrections),
			Home:   field(idx.home),
			Away:   field(idx.away),
		}
		if m.Round, err = number(idx.round, cols.Round); err != nil {
			return nil, err
		}
		if m.HomeGoals, err = number(idx.hg, cols.HomeGoals); err != nil {
			return nil, err
		}
		if m.AwayGoals, err = number(idx.ag, cols.AwayGoals); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func seasonOf(d time.Time, corrections []SeasonCorrection) int {
	for _, c := range corrections {
		if c.applies(d) {
			return c.Season
		}
	}
	return d.Year()
}
