// Package engine runs the daily exit policy: wake at the configured
// venue-local time, persist position snapshots, and flatten the position
// when the close falls below the trailing moving average.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"exitbot/internal/bars"
	"exitbot/internal/broker"
	"exitbot/internal/config"
	"exitbot/internal/metrics"
	"exitbot/internal/order"
	"exitbot/internal/session"
)

// Trader places and drives orders to a terminal outcome.
type Trader interface {
	Execute(ctx context.Context, contract broker.Contract, req order.Request) error
}

// SnapshotStore persists position observations. Writes are best-effort.
type SnapshotStore interface {
	InsertPosition(ctx context.Context, pos broker.Position) error
}

type Engine struct {
	gateway   broker.Brokerage
	trader    Trader
	store     SnapshotStore
	decisions *DecisionLogger
	cfg       config.Config
}

func New(gateway broker.Brokerage, trader Trader, store SnapshotStore, decisions *DecisionLogger, cfg config.Config) *Engine {
	return &Engine{
		gateway:   gateway,
		trader:    trader,
		store:     store,
		decisions: decisions,
		cfg:       cfg,
	}
}

// Run loops daily until ctx is cancelled. Errors inside one cycle are logged
// and the loop continues after a short pause; only shutdown ends it.
func (e *Engine) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := sleepUntil(ctx, e.cfg.ExitHour, e.cfg.ExitMinute, e.cfg.Loc); err != nil {
			break
		}
		if err := e.runCycle(ctx); err != nil {
			slog.Error("exit check cycle failed", "error", err)
			_ = waitFor(ctx, 5*time.Second)
		}
	}
	slog.Info("engine stopped")
	return nil
}

func (e *Engine) runCycle(ctx context.Context) error {
	e.snapshotPositions(ctx)

	contract := broker.Stock(e.cfg.Symbol)
	if err := e.gateway.QualifyContract(ctx, &contract); err != nil {
		return err
	}

	hours, ok := e.tradingHours(ctx, contract)
	if !ok {
		return nil // shutting down
	}
	now := time.Now().In(e.cfg.Loc)
	if !session.IsTradingDay(hours, now) {
		slog.Info("not a trading day, skipping exit check", "symbol", e.cfg.Symbol)
		return nil
	}
	if open, end := session.Window(hours, now); open {
		slog.Info("market open", "symbol", e.cfg.Symbol, "session_end", end.Format("15:04 MST"))
	} else {
		slog.Info("market closed, evaluating on last close", "symbol", e.cfg.Symbol)
	}

	return e.CheckExit(ctx, contract)
}

// tradingHours fetches the session-description string, retrying transient
// failures on a fixed 5s backoff. The retry is bounded only by shutdown;
// ok=false means ctx was cancelled before hours arrived.
func (e *Engine) tradingHours(ctx context.Context, contract broker.Contract) (string, bool) {
	for ctx.Err() == nil {
		hours, err := e.gateway.TradingHours(ctx, contract)
		if err != nil {
			slog.Warn("trading hours fetch failed, retrying in 5s", "error", err)
			_ = waitFor(ctx, 5*time.Second)
			continue
		}
		return hours, true
	}
	return "", false
}

// CheckExit evaluates the moving-average exit rule once and closes the
// position when the last close is below the trailing average.
func (e *Engine) CheckExit(ctx context.Context, contract broker.Contract) error {
	positions, err := e.gateway.Positions(ctx)
	if err != nil {
		return err
	}
	pos, found := broker.PositionFor(positions, contract.ConID)
	if !found || pos.Qty == 0 {
		slog.Info("no position to evaluate", "symbol", e.cfg.Symbol)
		e.appendDecision(Decision{Symbol: e.cfg.Symbol, Action: "hold", Result: "no_position"})
		return nil
	}
	slog.Info("position", "symbol", e.cfg.Symbol, "shares", pos.Qty)

	series, err := e.gateway.DailyBars(ctx, contract, e.cfg.LookbackDays, true)
	if err != nil {
		return err
	}
	lastClose, ma, err := bars.CloseAndSMA(series, e.cfg.MAPeriod)
	if errors.Is(err, bars.ErrInsufficientData) {
		slog.Warn("insufficient historical bars", "period", e.cfg.MAPeriod, "got", len(series))
		e.appendDecision(Decision{Symbol: e.cfg.Symbol, PositionQty: pos.Qty, Action: "hold", Result: "insufficient_data"})
		return nil
	}
	if err != nil {
		return err
	}
	metrics.LastClose.Set(lastClose)
	metrics.MovingAverage.Set(ma)
	slog.Info("exit signal", "symbol", e.cfg.Symbol, "close", lastClose, "period", e.cfg.MAPeriod, "ma", ma)

	decision := Decision{
		Symbol:      e.cfg.Symbol,
		Close:       lastClose,
		MA:          ma,
		Period:      e.cfg.MAPeriod,
		PositionQty: pos.Qty,
	}
	if lastClose >= ma {
		slog.Info("above moving average, holding", "symbol", e.cfg.Symbol)
		decision.Action = "hold"
		decision.Result = "held"
		e.appendDecision(decision)
		return nil
	}

	slog.Info("below moving average, exiting position", "symbol", e.cfg.Symbol)
	decision.Action = "exit"
	if err := e.trader.Execute(ctx, contract, order.Request{}); err != nil {
		decision.Result = "order_failed"
		decision.Error = err.Error()
		e.appendDecision(decision)
		return err
	}
	decision.Result = "order_placed"
	e.appendDecision(decision)
	return nil
}

// snapshotPositions persists every non-zero holding of the traded symbol.
// Failures are logged and counted, never escalated.
func (e *Engine) snapshotPositions(ctx context.Context) {
	positions, err := e.gateway.Positions(ctx)
	if err != nil {
		slog.Warn("positions fetch failed", "error", err)
		return
	}
	for _, pos := range positions {
		if pos.Qty == 0 || pos.Symbol != e.cfg.Symbol {
			continue
		}
		if err := e.store.InsertPosition(ctx, pos); err != nil {
			slog.Warn("position snapshot write failed", "symbol", pos.Symbol, "error", err)
			metrics.SnapshotFailures.Inc()
		}
	}
}

func (e *Engine) appendDecision(d Decision) {
	if e.decisions == nil {
		return
	}
	e.decisions.Append(d)
}
