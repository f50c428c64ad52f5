package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config carries the process settings and every policy constant the rating
// and verification logic depends on. All values come from the environment
// (godotenv loads .env in main) with the defaults below.
type Config struct {
	Addr   string
	DBPath string

	// Shared secret for the scheduler trigger endpoints.
	CronSecret string

	// Verification engine policy.
	VerifyBaseScore   int
	VerifyRecencyCred int
	VerifyDeviceCred  int
	VerifyThreshold   int
	TrustWindow       time.Duration

	// Peer review policy.
	ReviewQuorum     int
	Supermajority    float64
	ReviewPageSize   int
	StaleReviewAfter time.Duration

	// Job lock and ranking policy.
	LockTTL    time.Duration
	DecayGrace time.Duration
	DailyDecay float64
}

func Load() Config {
	return Config{
		Addr:       envString("ADDR", ":8080"),
		DBPath:     envString("DB_PATH", "skillrank.db"),
		CronSecret: os.Getenv("CRON_SECRET"),

		VerifyBaseScore:   envInt("VERIFY_BASE_SCORE", 40),
		VerifyRecencyCred: envInt("VERIFY_RECENCY_CREDIT", 30),
		VerifyDeviceCred:  envInt("VERIFY_DEVICE_CREDIT", 30),
		VerifyThreshold:   envInt("VERIFY_THRESHOLD", 60),
		TrustWindow:       envDuration("TRUST_WINDOW", 72*time.Hour),

		ReviewQuorum:     envInt("REVIEW_QUORUM", 3),
		Supermajority:    envFloat("REVIEW_SUPERMAJORITY", 2.0/3.0),
		ReviewPageSize:   envInt("REVIEW_PAGE_SIZE", 20),
		StaleReviewAfter: envDuration("STALE_REVIEW_AFTER", 14*24*time.Hour),

		LockTTL:    envDuration("JOB_LOCK_TTL", 5*time.Minute),
		DecayGrace: envDuration("DECAY_GRACE", 30*24*time.Hour),
		DailyDecay: envFloat("DAILY_DECAY", 0.995),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring malformed env value, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("ignoring malformed env value, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("ignoring malformed env value, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return d
	}
	return fallback
}
