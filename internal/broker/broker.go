// Package broker defines the brokerage data model and the gateway interface
// the trading core depends on. The gateway is passed explicitly to every
// component so tests can substitute a scripted double.
package broker

import (
	"context"
	"time"
)

type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Status is the brokerage-reported order state. The brokerage is the system
// of record; transitions arrive as asynchronous updates.
type Status string

const (
	StatusSubmitted       Status = "Submitted"
	StatusPartiallyFilled Status = "PartiallyFilled"
	StatusFilled          Status = "Filled"
	StatusCancelled       Status = "Cancelled"
)

// Contract identifies a tradable instrument. ConID is assigned by the
// brokerage during qualification and is immutable afterwards.
type Contract struct {
	Symbol          string
	SecType         string
	Currency        string
	Exchange        string // routing venue
	PrimaryExchange string
	ConID           string
}

const (
	SecTypeStock = "STK"
	SmartRouting = "SMART"
)

// Stock builds an equity contract with smart routing, the only contract
// shape this system trades.
func Stock(symbol string) Contract {
	return Contract{
		Symbol:          symbol,
		SecType:         SecTypeStock,
		Currency:        "USD",
		Exchange:        SmartRouting,
		PrimaryExchange: "ARCA",
	}
}

// Order is a brokerage order snapshot. ID is the broker-assigned permanent
// identifier, set at submission.
type Order struct {
	ID            string
	ConID         string
	Symbol        string
	Action        Action
	Qty           int
	Status        Status
	Filled        int
	Remaining     int
	Tag           string
	ExtendedHours bool
}

// Fill is one execution under an order. ExecID is unique per partial or full
// fill; the brokerage may redeliver the same fill, so consumers must
// de-duplicate on it. Commission is reported asynchronously and may be nil.
type Fill struct {
	ExecID     string
	Side       Action
	Qty        int
	Price      float64
	Time       time.Time
	Commission *float64
}

// Position is a live holding snapshot. Qty is signed: positive long,
// negative short, zero flat.
type Position struct {
	ConID        string
	Symbol       string
	SecType      string
	Currency     string
	Exchange     string
	Qty          int
	AvgCost      float64
	MarkPrice    float64
	MarketValue  float64
	UnrealizedPL float64
	RealizedPL   float64
	RecordedAt   time.Time
}

// Bar is one daily bar of the historical feed.
type Bar struct {
	Date  time.Time
	Close float64
}

// OrderSpec describes a market order to submit.
type OrderSpec struct {
	Action        Action
	Qty           int
	ExtendedHours bool
	Tag           string
}

// Brokerage is the gateway contract. All views (open orders, positions,
// fills) are read-only snapshots taken fresh on each call; WaitUpdate blocks
// until the gateway signals "something changed", the timeout elapses, or ctx
// is cancelled, so callers re-check their own terminal condition on every
// wake.
type Brokerage interface {
	Connect(ctx context.Context) error
	Close()

	// StreamUpdates consumes the gateway's push feed until ctx is
	// cancelled, firing the update signal on every event.
	StreamUpdates(ctx context.Context) error

	QualifyContract(ctx context.Context, c *Contract) error
	PlaceMarketOrder(ctx context.Context, c Contract, spec OrderSpec) (Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	OpenOrders(ctx context.Context, conID string) ([]Order, error)
	OrderStatus(ctx context.Context, orderID string) (Order, error)
	Fills(ctx context.Context, orderID string) ([]Fill, error)
	Positions(ctx context.Context) ([]Position, error)
	TradingHours(ctx context.Context, c Contract) (string, error)
	DailyBars(ctx context.Context, c Contract, lookbackDays int, regularHoursOnly bool) ([]Bar, error)

	WaitUpdate(ctx context.Context, timeout time.Duration)
}

// PositionFor returns the position for conID in a snapshot, if present.
func PositionFor(positions []Position, conID string) (Position, bool) {
	for _, p := range positions {
		if p.ConID == conID {
			return p, true
		}
	}
	return Position{}, false
}
