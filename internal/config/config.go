package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string
	// PatternSweepCron schedules the background pattern detection sweep.
	PatternSweepCron string
	// HistoryMonths is the lookback window handed to pattern detection
	// and seasonal forecasting.
	HistoryMonths int

	// Engine tuning. Defaults are the hand-tuned reference values; each
	// can be overridden per deployment.
	PatternMinConfidence float64
	PatternMinGroupSize  int
	TrendMinRSquared     float64
	MatchToleranceDays   int
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		DBConn:               getEnv("DB_CONN", "host=localhost port=5432 user=test password=test dbname=billfold sslmode=disable"),
		LogLevel:             getEnv("LOG_LEVEL", "INFO"),
		PatternSweepCron:     getEnv("PATTERN_SWEEP_CRON", "0 3 * * *"),
		HistoryMonths:        getEnvInt("HISTORY_MONTHS", 24),
		PatternMinConfidence: getEnvFloat("PATTERN_MIN_CONFIDENCE", 0.6),
		PatternMinGroupSize:  getEnvInt("PATTERN_MIN_GROUP_SIZE", 3),
		TrendMinRSquared:     getEnvFloat("TREND_MIN_R2", 0.7),
		MatchToleranceDays:   getEnvInt("MATCH_TOLERANCE_DAYS", 3),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.HistoryMonths < 1 {
		return nil, fmt.Errorf("HISTORY_MONTHS must be positive")
	}
	if cfg.PatternMinConfidence < 0 || cfg.PatternMinConfidence > 1 {
		return nil, fmt.Errorf("PATTERN_MIN_CONFIDENCE must be within [0,1]")
	}
	if cfg.TrendMinRSquared < 0 || cfg.TrendMinRSquared > 1 {
		return nil, fmt.Errorf("TREND_MIN_R2 must be within [0,1]")
	}
	if cfg.MatchToleranceDays < 0 {
		return nil, fmt.Errorf("MATCH_TOLERANCE_DAYS must not be negative")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
