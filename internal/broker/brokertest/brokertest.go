// Package brokertest provides a scripted Brokerage double that replays
// status, fill, and position sequences deterministically.
package brokertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exitbot/internal/broker"
)

// Fake implements broker.Brokerage. Order-status and position reads consume
// scripted sequences one snapshot per call, holding the last entry once the
// script is exhausted, so a waiter observes exactly the programmed
// progression.
type Fake struct {
	mu sync.Mutex

	ConIDs map[string]string // symbol -> con id assigned by qualification

	orders      map[string][]broker.Order // scripted snapshots per order id
	orderCursor map[string]int
	fills       map[string][]broker.Fill
	positions   [][]broker.Position
	posCursor   int
	open        []broker.Order
	hours       string
	bars        []broker.Bar

	placed    []broker.OrderSpec
	cancelled []string
	nextID    int
	posReads  int

	PlaceErr   error
	QualifyErr error
	OnPlace    func(spec broker.OrderSpec) broker.Order

	// CancelKeepsOpen leaves cancelled orders in the open set, simulating
	// a brokerage that never confirms the cancellation.
	CancelKeepsOpen bool
}

func New() *Fake {
	return &Fake{
		ConIDs:      map[string]string{},
		orders:      map[string][]broker.Order{},
		orderCursor: map[string]int{},
		fills:       map[string][]broker.Fill{},
	}
}

// ScriptOrder programs the snapshots OrderStatus will return for id.
func (f *Fake) ScriptOrder(id string, snapshots ...broker.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[id] = snapshots
	f.orderCursor[id] = 0
}

// ScriptPositions programs successive Positions snapshots.
func (f *Fake) ScriptPositions(snapshots ...[]broker.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = snapshots
	f.posCursor = 0
}

func (f *Fake) SetFills(orderID string, fills ...broker.Fill) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills[orderID] = fills
}

func (f *Fake) SetOpenOrders(orders ...broker.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = orders
}

func (f *Fake) SetTradingHours(hours string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hours = hours
}

func (f *Fake) SetDailyBars(bars ...broker.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars = bars
}

func (f *Fake) Placed() []broker.OrderSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.OrderSpec(nil), f.placed...)
}

func (f *Fake) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

func (f *Fake) Connect(ctx context.Context) error { return nil }
func (f *Fake) Close()                            {}

func (f *Fake) StreamUpdates(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *Fake) QualifyContract(ctx context.Context, c *broker.Contract) error {
	if f.QualifyErr != nil {
		return f.QualifyErr
	}
	if c.ConID != "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ConIDs[c.Symbol]
	if !ok {
		id = "con-" + c.Symbol
		f.ConIDs[c.Symbol] = id
	}
	c.ConID = id
	return nil
}

func (f *Fake) PlaceMarketOrder(ctx context.Context, c broker.Contract, spec broker.OrderSpec) (broker.Order, error) {
	if f.PlaceErr != nil {
		return broker.Order{}, f.PlaceErr
	}
	f.mu.Lock()
	f.placed = append(f.placed, spec)
	f.nextID++
	id := fmt.Sprintf("order-%d", f.nextID)
	f.mu.Unlock()
	if f.OnPlace != nil {
		return f.OnPlace(spec), nil
	}
	return broker.Order{
		ID:        id,
		ConID:     c.ConID,
		Symbol:    c.Symbol,
		Action:    spec.Action,
		Qty:       spec.Qty,
		Status:    broker.StatusSubmitted,
		Remaining: spec.Qty,
		Tag:       spec.Tag,
	}, nil
}

func (f *Fake) CancelOrder(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	if f.CancelKeepsOpen {
		return nil
	}
	remaining := f.open[:0]
	for _, o := range f.open {
		if o.ID != orderID {
			remaining = append(remaining, o)
		}
	}
	f.open = remaining
	return nil
}

func (f *Fake) OpenOrders(ctx context.Context, conID string) ([]broker.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broker.Order
	for _, o := range f.open {
		if o.ConID == conID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *Fake) OrderStatus(ctx context.Context, orderID string) (broker.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	script := f.orders[orderID]
	if len(script) == 0 {
		return broker.Order{}, fmt.Errorf("unknown order %s", orderID)
	}
	i := f.orderCursor[orderID]
	if i >= len(script) {
		i = len(script) - 1
	} else {
		f.orderCursor[orderID]++
	}
	return script[i], nil
}

func (f *Fake) Fills(ctx context.Context, orderID string) ([]broker.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.Fill(nil), f.fills[orderID]...), nil
}

// PositionReads reports how many Positions snapshots were consumed.
func (f *Fake) PositionReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posReads
}

func (f *Fake) Positions(ctx context.Context) ([]broker.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posReads++
	if len(f.positions) == 0 {
		return nil, nil
	}
	i := f.posCursor
	if i >= len(f.positions) {
		i = len(f.positions) - 1
	} else {
		f.posCursor++
	}
	return append([]broker.Position(nil), f.positions[i]...), nil
}

func (f *Fake) TradingHours(ctx context.Context, c broker.Contract) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hours, nil
}

func (f *Fake) DailyBars(ctx context.Context, c broker.Contract, lookbackDays int, regularHoursOnly bool) ([]broker.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.Bar(nil), f.bars...), nil
}

// WaitUpdate returns immediately so scripted sequences advance one snapshot
// per poll without real-time delays.
func (f *Fake) WaitUpdate(ctx context.Context, timeout time.Duration) {}
