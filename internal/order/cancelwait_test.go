package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"exitbot/internal/broker"
	"exitbot/internal/broker/brokertest"
)

func TestCancelOpenOrdersNoOpWhenNoneOpen(t *testing.T) {
	fake := brokertest.New()
	exec := newTestExecutor(fake)

	start := time.Now()
	exec.cancelOpenOrders(context.Background(), broker.Stock("SPY"))
	assert.Empty(t, fake.Cancelled())
	assert.Less(t, time.Since(start), exec.cfg.CancelTimeout, "empty set must return immediately")
}

func TestCancelOpenOrdersCancelsEveryOrder(t *testing.T) {
	fake := brokertest.New()
	contract := broker.Stock("SPY")
	contract.ConID = "con-SPY"
	fake.SetOpenOrders(
		broker.Order{ID: "stale-1", ConID: "con-SPY", Status: broker.StatusSubmitted},
		broker.Order{ID: "stale-2", ConID: "con-SPY", Status: broker.StatusSubmitted},
		broker.Order{ID: "other", ConID: "con-QQQ", Status: broker.StatusSubmitted},
	)
	exec := newTestExecutor(fake)

	exec.cancelOpenOrders(context.Background(), contract)

	cancelled := fake.Cancelled()
	assert.ElementsMatch(t, []string{"stale-1", "stale-2"}, cancelled, "only this contract's orders are cancelled")
}

func TestCancelOpenOrdersSoftTimeout(t *testing.T) {
	fake := brokertest.New()
	contract := broker.Stock("SPY")
	contract.ConID = "con-SPY"
	fake.SetOpenOrders(broker.Order{ID: "stuck", ConID: "con-SPY", Status: broker.StatusSubmitted})
	fake.CancelKeepsOpen = true
	exec := newTestExecutor(fake)

	start := time.Now()
	exec.cancelOpenOrders(context.Background(), contract)
	elapsed := time.Since(start)

	assert.Contains(t, fake.Cancelled(), "stuck")
	assert.GreaterOrEqual(t, elapsed, exec.cfg.CancelTimeout, "timeout path must wait out the confirmation window")
}
