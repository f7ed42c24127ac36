package config

import (
	"fmt"
	"os"
	"strconv"

	"raceadmin/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	DBPath     string
	ServerPort string
	LogLevel   string

	// Reconciliation tunables.
	SimilarityThreshold float64
	CloseAgeMaxDelta    int
	JoinGraceDays       int

	// External results feed.
	FeedBaseURL string
	FeedAPIKey  string

	// Nightly re-tabulation sweep. Empty cron spec disables it.
	SweepCronSpec string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	threshold, err := getEnvFloat("SIMILARITY_THRESHOLD", constants.DefaultSimilarityThreshold)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be in (0,1], got %v", threshold)
	}
	closeAge, err := getEnvInt("CLOSE_AGE_MAX_DELTA", constants.DefaultCloseAgeMaxDelta)
	if err != nil {
		return nil, err
	}
	graceDays, err := getEnvInt("JOIN_GRACE_DAYS", constants.DefaultJoinGraceDays)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:              getEnv("DB_PATH", "raceadmin.db"),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		SimilarityThreshold: threshold,
		CloseAgeMaxDelta:    closeAge,
		JoinGraceDays:       graceDays,
		FeedBaseURL:         getEnv("RESULTS_FEED_URL", ""),
		FeedAPIKey:          getEnv("RESULTS_FEED_API_KEY", ""),
		SweepCronSpec:       getEnv("SWEEP_CRON", ""),
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Float64("similarity_threshold", cfg.SimilarityThreshold).
		Int("close_age_max_delta", cfg.CloseAgeMaxDelta).
		Int("join_grace_days", cfg.JoinGraceDays).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric: %w", key, err)
	}
	return f, nil
}
