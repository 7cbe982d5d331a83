// Package config loads env-driven settings with flag overrides and validates
// them at startup. Invalid configuration exits before anything connects.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// VenueTimeZone is where the traded venue keeps time; sessions, wake times,
// and fill timestamps are all expressed in it.
const VenueTimeZone = "America/New_York"

type Config struct {
	// Brokerage
	APIKey        string
	APISecret     string
	BrokerBaseURL string

	// Symbol & strategy
	Symbol        string
	MAPeriod      int
	LookbackDays  int
	StrategyTag   string
	ExtendedHours bool

	// Daily exit check wake time, venue-local.
	ExitHour   int
	ExitMinute int

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Process
	DecisionsPath string
	MetricsAddr   string
	LogDir        string
	TestBuy       int

	Loc *time.Location
}

func Load() (Config, error) {
	var cfg Config

	loadDotEnvIfPresent(".env")

	flag.StringVar(&cfg.Symbol, "symbol", envOr("SYMBOL", "SPY"), "trading symbol")
	flag.IntVar(&cfg.MAPeriod, "ma-period", envOrInt("MA_PERIOD", 40), "moving average period; exit when close < MA")
	flag.IntVar(&cfg.LookbackDays, "lookback-days", envOrInt("LOOKBACK_DAYS", 90), "calendar days of daily bars to fetch")
	flag.StringVar(&cfg.StrategyTag, "strategy-tag", envOr("STRATEGY_TAG", ""), "opaque tag attached to every order")
	flag.BoolVar(&cfg.ExtendedHours, "extended-hours", true, "allow fills outside regular trading hours")
	flag.IntVar(&cfg.ExitHour, "exit-check-hour", envOrInt("EXIT_CHECK_HOUR", 16), "exit check wake hour (venue-local)")
	flag.IntVar(&cfg.ExitMinute, "exit-check-minute", envOrInt("EXIT_CHECK_MINUTE", 2), "exit check wake minute (venue-local)")
	flag.StringVar(&cfg.DecisionsPath, "decisions-path", envOr("DECISIONS_PATH", "decisions.ndjson"), "path to decision audit log")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", envOr("METRICS_ADDR", ":9090"), "prometheus listen address")
	flag.StringVar(&cfg.LogDir, "log-dir", envOr("LOG_DIR", "logs"), "directory for daily log files")
	flag.IntVar(&cfg.TestBuy, "test-buy", 0, "one-off buy of N shares for testing, then exit")
	flag.Parse()

	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")
	cfg.BrokerBaseURL = envOr("APCA_API_BASE_URL", "https://paper-api.alpaca.markets")

	cfg.DBHost = envOr("DB_HOST", "localhost")
	cfg.DBPort = envOrInt("DB_PORT", 5432)
	cfg.DBName = envOr("DB_NAME", "trading")
	cfg.DBUser = envOr("DB_USER", "botuser")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")

	loc, err := time.LoadLocation(VenueTimeZone)
	if err != nil {
		return cfg, fmt.Errorf("load venue time zone: %w", err)
	}
	cfg.Loc = loc

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate collects every problem so the operator sees the full list at
// once. MAPeriod above 200 is allowed but reported by the caller as a
// warning via Warnings.
func validate(cfg Config) error {
	var errs []string
	if strings.TrimSpace(cfg.Symbol) == "" {
		errs = append(errs, "symbol must be non-empty")
	}
	if cfg.MAPeriod < 1 {
		errs = append(errs, "ma-period must be >= 1")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		errs = append(errs, "APCA_API_KEY_ID and APCA_API_SECRET_KEY must be set")
	}
	if cfg.DBPassword == "" {
		errs = append(errs, "DB_PASSWORD must be set (do not use a default)")
	}
	if strings.TrimSpace(cfg.DBHost) == "" {
		errs = append(errs, "DB_HOST must be non-empty")
	}
	if cfg.DBPort < 1 || cfg.DBPort > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.ExitHour < 0 || cfg.ExitHour > 23 {
		errs = append(errs, "exit-check-hour must be between 0 and 23")
	}
	if cfg.ExitMinute < 0 || cfg.ExitMinute > 59 {
		errs = append(errs, "exit-check-minute must be between 0 and 59")
	}
	if cfg.LookbackDays < cfg.MAPeriod {
		errs = append(errs, "lookback-days must be >= ma-period")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Warnings reports settings that are legal but suspicious.
func (c Config) Warnings() []string {
	var out []string
	if c.MAPeriod > 200 {
		out = append(out, fmt.Sprintf("ma-period %d is unusually long (typical <= 200)", c.MAPeriod))
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
