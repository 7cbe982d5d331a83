package order

import (
	"context"
	"log/slog"
	"time"

	"exitbot/internal/broker"
	"exitbot/internal/metrics"
)

// cancelOpenOrders cancels every open order for the contract and blocks
// until none remain open or the confirmation timeout elapses. Timeout is a
// soft failure: execution proceeds and the brokerage's own validation guards
// the subsequent submission.
func (e *Executor) cancelOpenOrders(ctx context.Context, contract broker.Contract) {
	open, err := e.gateway.OpenOrders(ctx, contract.ConID)
	if err != nil {
		slog.Warn("open orders fetch failed", "symbol", contract.Symbol, "error", err)
		return
	}
	if len(open) == 0 {
		slog.Info("no open orders", "symbol", contract.Symbol)
		return
	}

	for _, o := range open {
		if err := e.gateway.CancelOrder(ctx, o.ID); err != nil {
			slog.Warn("cancel request failed", "order_id", o.ID, "error", err)
			continue
		}
		slog.Info("cancel requested", "order_id", o.ID, "symbol", contract.Symbol)
	}

	deadline := time.Now().Add(e.cfg.CancelTimeout)
	for {
		e.gateway.WaitUpdate(ctx, e.cfg.PollInterval)

		stillOpen, err := e.gateway.OpenOrders(ctx, contract.ConID)
		if err != nil {
			slog.Warn("open orders fetch failed", "symbol", contract.Symbol, "error", err)
		} else if len(stillOpen) == 0 {
			slog.Info("all orders cancelled", "symbol", contract.Symbol)
			return
		}

		if ctx.Err() != nil {
			return
		}
		if time.Now().After(deadline) {
			slog.Warn("orders still open after timeout", "symbol", contract.Symbol)
			metrics.CancelTimeouts.Inc()
			return
		}
	}
}
