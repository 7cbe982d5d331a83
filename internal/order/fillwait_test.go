package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exitbot/internal/broker"
	"exitbot/internal/broker/brokertest"
)

func TestWaitForFillStatusSequence(t *testing.T) {
	fake := brokertest.New()
	fake.ScriptOrder("order-1",
		broker.Order{ID: "order-1", Status: broker.StatusSubmitted, Remaining: 100},
		broker.Order{ID: "order-1", Status: broker.StatusPartiallyFilled, Filled: 60, Remaining: 40},
		broker.Order{ID: "order-1", Status: broker.StatusFilled, Filled: 100, Remaining: 0},
	)
	exec := newTestExecutor(fake)

	filled := exec.waitForFill(context.Background(), broker.Stock("SPY"), broker.Order{ID: "order-1"})
	assert.True(t, filled)
	assert.Empty(t, fake.Cancelled())
}

func TestWaitForFillTimeoutCancels(t *testing.T) {
	fake := brokertest.New()
	fake.ScriptOrder("order-1",
		broker.Order{ID: "order-1", Status: broker.StatusSubmitted, Remaining: 100},
	)
	exec := newTestExecutor(fake)

	start := time.Now()
	filled := exec.waitForFill(context.Background(), broker.Stock("SPY"), broker.Order{ID: "order-1"})
	assert.False(t, filled)
	assert.Contains(t, fake.Cancelled(), "order-1")
	assert.GreaterOrEqual(t, time.Since(start), exec.cfg.FillTimeout, "must wait out the full timeout before cancelling")
}

func TestWaitForFillShutdownExitsWithoutCancel(t *testing.T) {
	fake := brokertest.New()
	fake.ScriptOrder("order-1",
		broker.Order{ID: "order-1", Status: broker.StatusSubmitted, Remaining: 100},
	)
	exec := newTestExecutor(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	filled := exec.waitForFill(ctx, broker.Stock("SPY"), broker.Order{ID: "order-1"})
	assert.False(t, filled, "shutdown reads as never became ready")
	assert.Empty(t, fake.Cancelled(), "shutdown is not a timeout; no cancel is issued")
}

func TestWaitForFillFilledStatusBeatsDeadline(t *testing.T) {
	// The fill condition is checked before the elapsed check, so an order
	// already filled on the first wake wins even with a zero timeout left.
	fake := brokertest.New()
	fake.ScriptOrder("order-1",
		broker.Order{ID: "order-1", Status: broker.StatusFilled, Filled: 100, Remaining: 0},
	)
	exec := NewExecutor(fake, "ma-exit", true, time.UTC, Config{
		FillTimeout:    0,
		CancelTimeout:  time.Millisecond,
		ConfirmTimeout: time.Millisecond,
		PollInterval:   time.Millisecond,
	})

	filled := exec.waitForFill(context.Background(), broker.Stock("SPY"), broker.Order{ID: "order-1"})
	assert.True(t, filled)
}

func TestFillLedgerDeduplicatesByExecID(t *testing.T) {
	ledger := newFillLedger()
	fill := broker.Fill{ExecID: "exec-1", Side: broker.Buy, Qty: 60, Price: 500.1}

	require.True(t, ledger.record(fill))
	require.False(t, ledger.record(fill), "redelivered fill must be dropped")
	assert.Equal(t, 60, ledger.qty, "redelivery must not double-count size")

	require.True(t, ledger.record(broker.Fill{ExecID: "exec-2", Qty: 40}))
	assert.Equal(t, 100, ledger.qty)
}
