package order

import (
	"context"
	"log/slog"
	"time"

	"exitbot/internal/broker"
	"exitbot/internal/metrics"
)

// waitForFill drives a submitted order to one of two terminal outcomes:
// filled in full (true) or timed out and cancelled (false). A timeout is an
// expected outcome, not an error. The fill condition is checked before the
// deadline on every wake, so an order filling exactly at the boundary is
// treated as filled.
func (e *Executor) waitForFill(ctx context.Context, contract broker.Contract, submitted broker.Order) bool {
	deadline := time.Now().Add(e.cfg.FillTimeout)
	ledger := newFillLedger()
	lastStatus := broker.Status("")

	for {
		e.gateway.WaitUpdate(ctx, e.cfg.PollInterval)

		current, err := e.gateway.OrderStatus(ctx, submitted.ID)
		if err != nil {
			slog.Warn("order status fetch failed", "order_id", submitted.ID, "error", err)
		} else {
			if current.Status != lastStatus {
				slog.Info("order status", "order_id", submitted.ID, "status", current.Status, "filled", current.Filled, "remaining", current.Remaining)
				lastStatus = current.Status
			}
			e.recordFills(ctx, contract, submitted.ID, ledger)

			if current.Status == broker.StatusFilled && current.Remaining == 0 {
				slog.Info("order filled", "order_id", submitted.ID)
				metrics.OrdersFilled.Inc()
				return true
			}
		}

		if ctx.Err() != nil {
			// Shutdown: report "never became ready" without consuming
			// the remaining timeout.
			return false
		}
		if time.Now().After(deadline) {
			slog.Warn("order timeout, cancelling", "order_id", submitted.ID, "waited", e.cfg.FillTimeout)
			metrics.FillTimeouts.Inc()
			if err := e.gateway.CancelOrder(ctx, submitted.ID); err != nil {
				slog.Warn("cancel after timeout failed", "order_id", submitted.ID, "error", err)
			}
			return false
		}
	}
}

// recordFills logs each execution exactly once, de-duplicated by execution
// id across redeliveries.
func (e *Executor) recordFills(ctx context.Context, contract broker.Contract, orderID string, ledger *fillLedger) {
	fills, err := e.gateway.Fills(ctx, orderID)
	if err != nil {
		slog.Warn("fills fetch failed", "order_id", orderID, "error", err)
		return
	}
	for _, fill := range fills {
		if !ledger.record(fill) {
			continue
		}
		metrics.FillsRecorded.Inc()
		attrs := []any{
			"symbol", contract.Symbol,
			"side", fill.Side,
			"size", fill.Qty,
			"price", fill.Price,
			"time", fill.Time.In(e.loc).Format("15:04:05"),
		}
		if fill.Commission != nil {
			attrs = append(attrs, "commission", *fill.Commission)
		}
		slog.Info("fill", attrs...)
	}
}

// fillLedger tracks executions seen under one order. Qty sums only distinct
// execution ids, so a redelivered fill never double-counts.
type fillLedger struct {
	seen map[string]struct{}
	qty  int
}

func newFillLedger() *fillLedger {
	return &fillLedger{seen: map[string]struct{}{}}
}

func (l *fillLedger) record(f broker.Fill) bool {
	if _, dup := l.seen[f.ExecID]; dup {
		return false
	}
	l.seen[f.ExecID] = struct{}{}
	l.qty += f.Qty
	return true
}
