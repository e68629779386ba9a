package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/utakatalp/league-history/internal/league"
)

//go:embed brasileirao.yaml
var defaultLeague []byte

const correctionLayout = "2006-01-02"

// League holds the historical tables the pipeline cannot derive from the
// match log: who went down, who came up when there is no prior table,
// tenure before the first season and known bad rows.
type League struct {
	Name              string           `yaml:"name"`
	FirstSeason       int              `yaml:"first_season" validate:"required,gte=1900"`
	LastSeason        int              `yaml:"last_season" validate:"required,gtefield=FirstSeason"`
	TenureCap         int              `yaml:"tenure_cap" validate:"gte=0"`
	DateLayout        string           `yaml:"date_layout"`
	Columns           league.Columns   `yaml:"columns"`
	SeasonCorrections []Correction     `yaml:"season_corrections" validate:"dive"`
	Relegated         map[int][]string `yaml:"relegated" validate:"dive,dive,required"`
	Promoted          map[int][]string `yaml:"promoted" validate:"dive,dive,required"`
	TenureSeeds       map[string]int   `yaml:"tenure_seeds" validate:"dive,gte=0"`
	Exclude           []league.RowKey  `yaml:"exclude" validate:"dive"`
}

// Correction reassigns matches dated strictly between After and Before.
type Correction struct {
	After  string `yaml:"after" validate:"required,datetime=2006-01-02"`
	Before string `yaml:"before" validate:"required,datetime=2006-01-02"`
	Season int    `yaml:"season" validate:"required"`
}

// DefaultLeague returns the embedded Brasileirão 2003-2024 tables.
func DefaultLeague() (*League, error) {
	return ParseLeague(defaultLeague)
}

// LoadLeague reads a league file, or the embedded default when path is empty.
func LoadLeague(path string) (*League, error) {
	if path == "" {
		return DefaultLeague()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading league config: %w", err)
	}
	l, err := ParseLeague(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// ParseLeague decodes and validates a YAML league document.
func ParseLeague(b []byte) (*League, error) {
	l := &League{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(l); err != nil {
		return nil, fmt.Errorf("decoding league config: %w", err)
	}

	if l.Columns.Date == "" {
		l.Columns = league.DefaultColumns()
	}
	if l.DateLayout == "" {
		l.DateLayout = league.DateLayout
	}
	if l.TenureCap == 0 {
		l.TenureCap = league.DefaultTenureCap
	}

	if err := validator.New().Struct(l); err != nil {
		return nil, fmt.Errorf("invalid league config: %w", err)
	}
	return l, nil
}

// Seasons lists the configured seasons in order.
func (l *League) Seasons() []int {
	return league.SeasonRange(l.FirstSeason, l.LastSeason)
}

// LoadOptions converts the loader settings.
func (l *League) LoadOptions() (league.LoadOptions, error) {
	opts := league.LoadOptions{
		Columns:    l.Columns,
		DateLayout: l.DateLayout,
	}
	for _, c := range l.SeasonCorrections {
		after, err := time.Parse(correctionLayout, c.After)
		if err != nil {
			return opts, fmt.Errorf("season correction after: %w", err)
		}
		before, err := time.Parse(correctionLayout, c.Before)
		if err != nil {
			return opts, fmt.Errorf("season correction before: %w", err)
		}
		opts.Corrections = append(opts.Corrections, league.SeasonCorrection{
			After:  after,
			Before: before,
			Season: c.Season,
		})
	}
	return opts, nil
}

// Seeds returns the first-season tenure configuration.
func (l *League) Seeds() league.TenureSeeds {
	return league.TenureSeeds{Seeds: l.TenureSeeds, Cap: l.TenureCap}
}
