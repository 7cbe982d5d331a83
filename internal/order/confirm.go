package order

import (
	"context"
	"log/slog"
	"time"

	"exitbot/internal/broker"
	"exitbot/internal/metrics"
)

// confirmPosition blocks until the live position for the contract equals the
// expected signed quantity or the confirmation timeout elapses. The order
// already filled by the time this runs, so a timeout only flags bookkeeping
// latency and is logged as a warning. Quantities are integral share counts;
// equality is exact.
func (e *Executor) confirmPosition(ctx context.Context, contract broker.Contract, expected int) bool {
	deadline := time.Now().Add(e.cfg.ConfirmTimeout)
	for {
		e.gateway.WaitUpdate(ctx, e.cfg.PollInterval)

		positions, err := e.gateway.Positions(ctx)
		if err != nil {
			slog.Warn("positions fetch failed", "symbol", contract.Symbol, "error", err)
		} else {
			current := 0
			if pos, ok := broker.PositionFor(positions, contract.ConID); ok {
				current = pos.Qty
			}
			if current == expected {
				slog.Info("position confirmed", "symbol", contract.Symbol, "position", expected)
				return true
			}
		}

		if ctx.Err() != nil {
			return false
		}
		if time.Now().After(deadline) {
			slog.Warn("position confirmation timeout", "symbol", contract.Symbol, "expected", expected, "timeout", e.cfg.ConfirmTimeout)
			metrics.ConfirmTimeouts.Inc()
			return false
		}
	}
}
