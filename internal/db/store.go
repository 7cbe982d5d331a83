// Package db persists position snapshots to Postgres. Writes are
// fire-and-forget relative to the trading logic: a failed insert is logged
// by the caller and never blocks or fails a trade.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"exitbot/internal/broker"
)

type Config struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

func (c Config) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Name)
}

type Store struct {
	pool *pgxpool.Pool
}

// Connect builds the bounded pool and waits for the database to become
// reachable, retrying every two seconds until ctx is cancelled (the database
// may still be starting when the bot comes up).
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MinConns = 1
	poolCfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	for {
		if err := pool.Ping(ctx); err == nil {
			slog.Info("database pool initialized", "host", cfg.Host)
			return &Store{pool: pool}, nil
		} else {
			slog.Warn("database not ready, retrying in 2s", "error", err)
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("database connect aborted: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *Store) Close() {
	s.pool.Close()
}

// InsertPosition writes one position snapshot. Safe to retry: rows are
// append-only observations keyed by recorded_at.
func (s *Store) InsertPosition(ctx context.Context, pos broker.Position) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (
			con_id, symbol, sec_type, currency, exchange,
			size, avg_cost, market_price, market_value,
			unrealized_pnl, realized_pnl, recorded_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		pos.ConID,
		pos.Symbol,
		pos.SecType,
		pos.Currency,
		pos.Exchange,
		pos.Qty,
		pos.AvgCost,
		pos.MarkPrice,
		pos.MarketValue,
		pos.UnrealizedPL,
		pos.RealizedPL,
		pos.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert position %s: %w", pos.Symbol, err)
	}
	slog.Debug("inserted position", "symbol", pos.Symbol, "size", pos.Qty)
	return nil
}
