// Package order drives a market order through its full lifecycle:
// stale-order cancellation, submission, fill wait with timeout fallback, and
// post-trade position confirmation. One executor invocation owns its order
// exclusively; the brokerage remains the system of record for status.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"exitbot/internal/broker"
	"exitbot/internal/metrics"
)

// Config bounds every wait in the lifecycle. PollInterval is the sub-timeout
// on each update wait, so staleness and shutdown latency stay bounded even
// when the push signal is delayed.
type Config struct {
	FillTimeout    time.Duration
	CancelTimeout  time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		FillTimeout:    60 * time.Second,
		CancelTimeout:  30 * time.Second,
		ConfirmTimeout: 10 * time.Second,
		PollInterval:   2 * time.Second,
	}
}

type Executor struct {
	gateway       broker.Brokerage
	cfg           Config
	tag           string
	extendedHours bool
	loc           *time.Location
}

func NewExecutor(gateway broker.Brokerage, tag string, extendedHours bool, loc *time.Location, cfg Config) *Executor {
	return &Executor{
		gateway:       gateway,
		cfg:           cfg,
		tag:           tag,
		extendedHours: extendedHours,
		loc:           loc,
	}
}

// Request describes what to trade. A zero Size means "close the current
// position": the action and size are derived from the live holding, and a
// flat position makes the call a logged no-op.
type Request struct {
	Action broker.Action
	Size   int
}

// Execute places a market order and drives it to a terminal outcome.
// Connectivity errors while qualifying or submitting propagate to the
// caller; fill and confirmation timeouts are soft and only logged.
func (e *Executor) Execute(ctx context.Context, contract broker.Contract, req Request) error {
	if req.Size < 0 {
		return fmt.Errorf("order size must be positive, got %d", req.Size)
	}
	if err := e.gateway.QualifyContract(ctx, &contract); err != nil {
		return fmt.Errorf("qualify contract: %w", err)
	}
	if err := validateRouting(contract); err != nil {
		return err
	}

	positions, err := e.gateway.Positions(ctx)
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}
	current := 0
	if pos, ok := broker.PositionFor(positions, contract.ConID); ok {
		current = pos.Qty
	}

	action, size, expected, ok := resolve(current, req)
	if !ok {
		slog.Info("no position to close", "symbol", contract.Symbol)
		return nil
	}
	slog.Info("placing order", "action", action, "size", size, "symbol", contract.Symbol, "expected_position", expected)

	// A stale resting order for the same contract could double the
	// effective position, so cancellation must complete (or time out)
	// before the new submission.
	e.cancelOpenOrders(ctx, contract)

	submitted, err := e.gateway.PlaceMarketOrder(ctx, contract, broker.OrderSpec{
		Action:        action,
		Qty:           size,
		ExtendedHours: e.extendedHours,
		Tag:           e.tag,
	})
	if err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	metrics.OrdersSubmitted.WithLabelValues(string(action)).Inc()
	slog.Info("order submitted", "action", action, "size", size, "symbol", contract.Symbol, "type", "MKT", "tag", e.tag)

	if !e.waitForFill(ctx, contract, submitted) {
		// Timed out and cancelled, or shutting down: nothing to confirm.
		return nil
	}
	e.confirmPosition(ctx, contract, expected)
	return nil
}

// resolve computes action, size, and the expected post-trade position from
// the pre-trade holding. The expected value is fixed here, before any
// network round-trip, and used only for confirmation.
func resolve(current int, req Request) (action broker.Action, size, expected int, ok bool) {
	action, size = req.Action, req.Size
	if size == 0 {
		if current == 0 {
			return "", 0, 0, false
		}
		if current < 0 {
			action = broker.Buy
		} else {
			action = broker.Sell
		}
		size = current
		if size < 0 {
			size = -size
		}
	}
	if action == broker.Buy {
		expected = current + size
	} else {
		expected = current - size
	}
	return action, size, expected, true
}

// validateRouting guards configuration correctness: equities must route via
// the smart-routing venue (the primary exchange may still name a listing
// venue).
func validateRouting(c broker.Contract) error {
	if c.SecType == broker.SecTypeStock && c.Exchange != broker.SmartRouting {
		return fmt.Errorf("invalid stock routing: exchange=%s, stocks must route %s", c.Exchange, broker.SmartRouting)
	}
	return nil
}
