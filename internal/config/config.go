package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Config struct {
	Env      string `validate:"oneof=development production"`
	LogLevel string

	// Input
	MatchesPath  string `validate:"required"`
	LeaguePath   string // empty means the embedded Brasileirão tables
	CutoffRound  int    `validate:"gte=1"`
	PreviewRows  int    `validate:"gte=0"`
	PrintPreview bool

	// Output
	OutputDir   string `validate:"required"`
	PostgresURL string

	// Read-only snapshot API, disabled when empty
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// Load loads configuration from environment variables.
// Flags parsed by the caller may override the result before Validate.
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MatchesPath:  getEnv("MATCHES_PATH", "data/campeonato-brasileiro-full.csv"),
		LeaguePath:   getEnv("LEAGUE_CONFIG", ""),
		CutoffRound:  getEnvInt("CUTOFF_ROUND", 19),
		PreviewRows:  getEnvInt("PREVIEW_ROWS", 20),
		PrintPreview: getEnvBool("PRINT_PREVIEW", false),

		OutputDir:   getEnv("OUTPUT_DIR", "data"),
		PostgresURL: getEnv("POSTGRES_URL", ""),

		HTTPAddr:        getEnv("HTTP_ADDR", ""),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

// Validate checks the runtime settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// NewLogger builds a JSON logger in production and a console logger
// otherwise, at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	if c.Env == "production" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
