package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	loc, _ := time.LoadLocation(VenueTimeZone)
	return Config{
		APIKey:       "key",
		APISecret:    "secret",
		Symbol:       "SPY",
		MAPeriod:     40,
		LookbackDays: 90,
		ExitHour:     16,
		ExitMinute:   2,
		DBHost:       "localhost",
		DBPort:       5432,
		DBName:       "trading",
		DBUser:       "botuser",
		DBPassword:   "hunter2",
		Loc:          loc,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("expected config to be valid, got %v", err)
	}
}

func TestValidateRejectsEmptySymbol(t *testing.T) {
	cfg := validConfig()
	cfg.Symbol = "  "
	if err := validate(cfg); err == nil {
		t.Fatalf("expected validation error for empty symbol")
	}
}

func TestValidateRejectsNonPositivePeriod(t *testing.T) {
	cfg := validConfig()
	cfg.MAPeriod = 0
	if err := validate(cfg); err == nil {
		t.Fatalf("expected validation error for ma-period 0")
	}
}

func TestValidateRejectsMissingDBPassword(t *testing.T) {
	cfg := validConfig()
	cfg.DBPassword = ""
	if err := validate(cfg); err == nil {
		t.Fatalf("expected validation error for missing DB password")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Symbol = ""
	cfg.MAPeriod = 0
	cfg.DBPassword = ""
	err := validate(cfg)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"symbol", "ma-period", "DB_PASSWORD"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected error list to mention %q, got %q", want, msg)
		}
	}
}

func TestWarningsForLongPeriod(t *testing.T) {
	cfg := validConfig()
	cfg.MAPeriod = 201
	cfg.LookbackDays = 400
	if err := validate(cfg); err != nil {
		t.Fatalf("period over 200 must validate, got %v", err)
	}
	if len(cfg.Warnings()) == 0 {
		t.Fatalf("expected a warning for ma-period > 200")
	}
}
