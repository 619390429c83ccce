package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	ResetHour   int
	ResetMinute int

	CountryPrefix string
	TxTimeout     time.Duration

	BreakCooldown    time.Duration
	BreakMaxPerDay   int
	BreakDailyBudget time.Duration

	LongWaitThreshold time.Duration
	LongWaitInterval  time.Duration
	LongWaitBatchSize int

	NotifyInterval  time.Duration
	NotifyBatchSize int

	CredentialTTL time.Duration

	RateLimitPerMinute       int
	RateLimitBurst           int
	OutletRateLimitPerMinute int
	OutletRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),

		ResetHour:   readInt("RESET_HOUR", 12),
		ResetMinute: readInt("RESET_MINUTE", 0),

		CountryPrefix: os.Getenv("MOBILE_COUNTRY_PREFIX"),
		TxTimeout:     readDurationSeconds("TX_TIMEOUT_SECONDS", 10),

		BreakCooldown:    readDurationMinutes("BREAK_COOLDOWN_MINUTES", 30),
		BreakMaxPerDay:   readInt("BREAK_MAX_PER_DAY", 6),
		BreakDailyBudget: readDurationMinutes("BREAK_DAILY_BUDGET_MINUTES", 90),

		LongWaitThreshold: readDurationMinutes("LONG_WAIT_THRESHOLD_MINUTES", 20),
		LongWaitInterval:  readDurationSeconds("LONG_WAIT_SCAN_INTERVAL_SECONDS", 60),
		LongWaitBatchSize: readInt("LONG_WAIT_BATCH_SIZE", 100),

		NotifyInterval:  readDurationSeconds("NOTIFY_INTERVAL_SECONDS", 2),
		NotifyBatchSize: readInt("NOTIFY_BATCH_SIZE", 50),

		CredentialTTL: readDurationMinutes("CREDENTIAL_TTL_MINUTES", 5),

		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		OutletRateLimitPerMinute: readInt("OUTLET_RATE_LIMIT_PER_MIN", 600),
		OutletRateLimitBurst:     readInt("OUTLET_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readDurationMinutes(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Minute
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
