package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"exitbot/internal/broker"
	"exitbot/internal/config"
	"exitbot/internal/db"
	"exitbot/internal/engine"
	"exitbot/internal/metrics"
	"exitbot/internal/order"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logFile, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	for _, w := range cfg.Warnings() {
		slog.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("bot exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("bot shutdown complete")
}

func run(ctx context.Context, cfg config.Config) error {
	gateway := broker.NewAlpaca(cfg.APIKey, cfg.APISecret, cfg.BrokerBaseURL, cfg.Loc)
	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	defer cancelConnect()
	if err := gateway.Connect(connectCtx); err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}
	defer gateway.Close()
	slog.Info("connected to brokerage", "base_url", cfg.BrokerBaseURL)

	executor := order.NewExecutor(gateway, cfg.StrategyTag, cfg.ExtendedHours, cfg.Loc, order.DefaultConfig())

	// One-off test order, no database or daily loop needed.
	if cfg.TestBuy > 0 {
		return testBuy(ctx, gateway, executor, cfg)
	}

	store, err := db.Connect(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
	})
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer store.Close()

	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, generateRunID())
	if err != nil {
		return fmt.Errorf("decision logger: %w", err)
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			slog.Warn("failed to close decision logger", "error", err)
		}
	}()

	eng := engine.New(gateway, executor, store, decisions, cfg)
	slog.Info("starting bot",
		"run_id", decisions.RunID(),
		"symbol", cfg.Symbol,
		"ma_period", cfg.MAPeriod,
		"wake", fmt.Sprintf("%02d:%02d %s", cfg.ExitHour, cfg.ExitMinute, config.VenueTimeZone))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.StreamUpdates(ctx)
	})
	g.Go(func() error {
		return metrics.Serve(ctx, cfg.MetricsAddr)
	})
	g.Go(func() error {
		return eng.Run(ctx)
	})
	return g.Wait()
}

// testBuy places a single market buy and exits. Used to verify connectivity
// and order plumbing against the paper account.
func testBuy(ctx context.Context, gateway broker.Brokerage, executor *order.Executor, cfg config.Config) error {
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		if err := gateway.StreamUpdates(streamCtx); err != nil {
			slog.Warn("trade update stream stopped", "error", err)
		}
	}()

	slog.Info("placing test buy", "symbol", cfg.Symbol, "shares", cfg.TestBuy)
	contract := broker.Stock(cfg.Symbol)
	err := executor.Execute(ctx, contract, order.Request{Action: broker.Buy, Size: cfg.TestBuy})

	stopStream()
	<-streamDone
	return err
}

// setupLogging routes slog to stdout and a per-day file, timestamps in the
// venue time zone so log lines line up with session times and fill reports.
func setupLogging(cfg config.Config) (*os.File, error) {
	out := io.Writer(os.Stdout)
	var file *os.File
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("bot-%s.log", time.Now().In(cfg.Loc).Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
		out = io.MultiWriter(os.Stdout, f)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().In(cfg.Loc).Format("2006-01-02 15:04:05 MST"))
			}
			return a
		},
	})
	slog.SetDefault(slog.New(handler))
	return file, nil
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return timestamp
	}
	return timestamp + "-" + hex.EncodeToString(randomBytes)
}
