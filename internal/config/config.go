package config

import (
	"os"
	"strconv"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	AdminUser     string
	AdminPassword string

	DatabaseURL string

	ListenAddr string

	// LoaderAPIKey is the bearer key the external data loader uses to push
	// customers, products and orders. If empty, a key must be created
	// through the admin API before any data can be loaded.
	LoaderAPIKey string

	// ActiveDays and ChurnDays bound the recency-based activity tiers:
	// a customer whose last completed order is at most ActiveDays old is
	// "Active", up to ChurnDays old is "At Risk", and older is "Churned".
	ActiveDays int
	ChurnDays  int

	// AffinityMinSupport is the minimum number of orders a product pair
	// must co-occur in before it is reported; AffinityLimit caps the
	// number of pairs returned.
	AffinityMinSupport int
	AffinityLimit      int

	// AnalysisIntervalHours is how often the background worker recomputes
	// the persisted RFM and cohort tables.
	AnalysisIntervalHours int
}

// Load reads configuration from environment variables and applies
// defaults for anything unset.
func Load() *Config {
	cfg := &Config{
		AdminUser:             getenv("APP_ADMIN_USER", "admin"),
		AdminPassword:         getenv("APP_ADMIN_PASSWORD", "changeme"),
		DatabaseURL:           os.Getenv("APP_DATABASE_URL"),
		ListenAddr:            getenv("APP_LISTEN_ADDR", ":8080"),
		LoaderAPIKey:          getenv("APP_LOADER_API_KEY", ""),
		ActiveDays:            30,
		ChurnDays:             90,
		AffinityMinSupport:    10,
		AffinityLimit:         20,
		AnalysisIntervalHours: 24,
	}

	cfg.ActiveDays = getenvInt("APP_ACTIVE_DAYS", cfg.ActiveDays)
	cfg.ChurnDays = getenvInt("APP_CHURN_DAYS", cfg.ChurnDays)
	cfg.AffinityMinSupport = getenvInt("APP_AFFINITY_MIN_SUPPORT", cfg.AffinityMinSupport)
	cfg.AffinityLimit = getenvInt("APP_AFFINITY_LIMIT", cfg.AffinityLimit)
	cfg.AnalysisIntervalHours = getenvInt("APP_ANALYSIS_INTERVAL_HOURS", cfg.AnalysisIntervalHours)

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
