package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Alpaca is the production Brokerage. REST calls serve the snapshot views;
// the trade-update stream feeds the update signal and the per-order fill
// ledger. The SDK's REST methods carry no context, so cancellation is
// honored at the wait points rather than mid-call.
type Alpaca struct {
	api      *alpaca.Client
	md       *marketdata.Client
	notifier *Notifier
	loc      *time.Location

	mu    sync.Mutex
	fills map[string][]Fill
}

func NewAlpaca(apiKey, apiSecret, baseURL string, loc *time.Location) *Alpaca {
	return &Alpaca{
		api: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		md: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		notifier: NewNotifier(),
		loc:      loc,
		fills:    make(map[string][]Fill),
	}
}

// Connect verifies the account round-trip. Stream consumption is started
// separately via StreamUpdates so the caller owns the goroutine.
func (a *Alpaca) Connect(ctx context.Context) error {
	type result struct {
		acct *alpaca.Account
		err  error
	}
	done := make(chan result, 1)
	go func() {
		acct, err := a.api.GetAccount()
		done <- result{acct, err}
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("connect: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("connect: %w", r.err)
		}
		slog.Info("brokerage connected", "account", r.acct.AccountNumber, "status", r.acct.Status)
		return nil
	}
}

func (a *Alpaca) Close() {}

// StreamUpdates blocks on the trade-update feed until ctx is cancelled. Every
// event records any execution into the fill ledger and fires the update
// signal consumed by the waiters.
func (a *Alpaca) StreamUpdates(ctx context.Context) error {
	err := a.api.StreamTradeUpdates(ctx, func(u alpaca.TradeUpdate) {
		a.recordTradeUpdate(u)
		a.notifier.Broadcast()
	}, alpaca.StreamTradeUpdatesRequest{})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("trade update stream: %w", err)
	}
	return nil
}

func (a *Alpaca) recordTradeUpdate(u alpaca.TradeUpdate) {
	slog.Debug("trade update", "event", u.Event, "order_id", u.Order.ID, "status", u.Order.Status)
	if u.Event != "fill" && u.Event != "partial_fill" {
		return
	}
	fill := Fill{
		ExecID: u.ExecutionID,
		Side:   sideToAction(u.Order.Side),
		Time:   u.At,
	}
	if u.Qty != nil {
		fill.Qty = int(u.Qty.IntPart())
	}
	if u.Price != nil {
		fill.Price, _ = u.Price.Float64()
	}
	if u.Timestamp != nil {
		fill.Time = *u.Timestamp
	}
	a.mu.Lock()
	a.fills[u.Order.ID] = append(a.fills[u.Order.ID], fill)
	a.mu.Unlock()
}

// QualifyContract resolves the broker-assigned identifier for the contract.
// A contract already carrying an identifier is left untouched.
func (a *Alpaca) QualifyContract(ctx context.Context, c *Contract) error {
	if c.ConID != "" {
		return nil
	}
	asset, err := a.api.GetAsset(c.Symbol)
	if err != nil {
		return fmt.Errorf("qualify %s: %w", c.Symbol, err)
	}
	if !asset.Tradable {
		return fmt.Errorf("qualify %s: asset not tradable", c.Symbol)
	}
	c.ConID = asset.ID
	slog.Info("contract qualified", "symbol", c.Symbol, "con_id", c.ConID, "venue", asset.Exchange)
	return nil
}

func (a *Alpaca) PlaceMarketOrder(ctx context.Context, c Contract, spec OrderSpec) (Order, error) {
	qty := decimal.NewFromInt(int64(spec.Qty))
	req := alpaca.PlaceOrderRequest{
		Symbol:        c.Symbol,
		Qty:           &qty,
		Side:          actionToSide(spec.Action),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: clientOrderID(spec.Tag),
		ExtendedHours: spec.ExtendedHours,
	}
	placed, err := a.api.PlaceOrder(req)
	if err != nil {
		slog.Error("place order failed", "side", spec.Action, "symbol", c.Symbol, "qty", spec.Qty, "error", err)
		return Order{}, err
	}
	slog.Info("place order success", "order_id", placed.ID, "side", spec.Action, "symbol", c.Symbol, "qty", spec.Qty, "status", placed.Status)
	return a.mapOrder(*placed), nil
}

func (a *Alpaca) CancelOrder(ctx context.Context, orderID string) error {
	return a.api.CancelOrder(orderID)
}

func (a *Alpaca) OpenOrders(ctx context.Context, conID string) ([]Order, error) {
	orders, err := a.api.GetOrders(alpaca.GetOrdersRequest{Status: "open"})
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}
	var out []Order
	for _, o := range orders {
		mapped := a.mapOrder(o)
		if mapped.ConID == conID {
			out = append(out, mapped)
		}
	}
	return out, nil
}

func (a *Alpaca) OrderStatus(ctx context.Context, orderID string) (Order, error) {
	o, err := a.api.GetOrder(orderID)
	if err != nil {
		return Order{}, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	return a.mapOrder(*o), nil
}

// Fills returns the executions observed so far for the order. Entries may be
// redelivered by the feed; callers de-duplicate on ExecID.
func (a *Alpaca) Fills(ctx context.Context, orderID string) ([]Fill, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Fill(nil), a.fills[orderID]...), nil
}

func (a *Alpaca) Positions(ctx context.Context) ([]Position, error) {
	positions, err := a.api.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	now := time.Now().In(a.loc)
	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		pos := Position{
			ConID:      p.AssetID,
			Symbol:     p.Symbol,
			SecType:    SecTypeStock,
			Currency:   "USD",
			Exchange:   p.Exchange,
			Qty:        int(p.Qty.IntPart()),
			RecordedAt: now,
		}
		pos.AvgCost, _ = p.AvgEntryPrice.Float64()
		if p.CurrentPrice != nil {
			pos.MarkPrice, _ = p.CurrentPrice.Float64()
		}
		if p.MarketValue != nil {
			pos.MarketValue, _ = p.MarketValue.Float64()
		}
		if p.UnrealizedPL != nil {
			pos.UnrealizedPL, _ = p.UnrealizedPL.Float64()
		}
		out = append(out, pos)
	}
	return out, nil
}

// TradingHours synthesizes the session-description string from the venue
// calendar: one token per day over a five-day window, days the calendar
// omits reported as CLOSED so holidays and unknown dates read the same.
func (a *Alpaca) TradingHours(ctx context.Context, c Contract) (string, error) {
	now := time.Now().In(a.loc)
	start := now.AddDate(0, 0, -1)
	end := now.AddDate(0, 0, 3)
	days, err := a.api.GetCalendar(alpaca.GetCalendarRequest{Start: start, End: end})
	if err != nil {
		return "", fmt.Errorf("fetch calendar: %w", err)
	}
	open := make(map[string]string, len(days))
	for _, d := range days {
		date, err := time.ParseInLocation("2006-01-02", d.Date, a.loc)
		if err != nil {
			continue
		}
		open[date.Format("20060102")] = strings.ReplaceAll(d.Open, ":", "") + "-" + strings.ReplaceAll(d.Close, ":", "")
	}
	tokens := make([]string, 0, 5)
	for i := -1; i <= 3; i++ {
		day := now.AddDate(0, 0, i).Format("20060102")
		if hours, ok := open[day]; ok {
			tokens = append(tokens, day+":"+hours)
		} else {
			tokens = append(tokens, day+":CLOSED")
		}
	}
	return strings.Join(tokens, ";"), nil
}

// DailyBars fetches the trailing daily closes. Daily aggregates already
// exclude extended-hours trades, so regularHoursOnly needs no extra filter
// on this gateway.
func (a *Alpaca) DailyBars(ctx context.Context, c Contract, lookbackDays int, regularHoursOnly bool) ([]Bar, error) {
	now := time.Now().In(a.loc)
	bars, err := a.md.GetBars(c.Symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      now.AddDate(0, 0, -lookbackDays),
		End:        now,
		Adjustment: marketdata.Split,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars %s: %w", c.Symbol, err)
	}
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, Bar{Date: b.Timestamp.In(a.loc), Close: b.Close})
	}
	return out, nil
}

func (a *Alpaca) WaitUpdate(ctx context.Context, timeout time.Duration) {
	a.notifier.Wait(ctx, timeout)
}

func (a *Alpaca) mapOrder(o alpaca.Order) Order {
	qty := 0
	if o.Qty != nil {
		qty = int(o.Qty.IntPart())
	}
	filled := int(o.FilledQty.IntPart())
	return Order{
		ID:            o.ID,
		ConID:         o.AssetID,
		Symbol:        o.Symbol,
		Action:        sideToAction(o.Side),
		Qty:           qty,
		Status:        mapStatus(string(o.Status)),
		Filled:        filled,
		Remaining:     qty - filled,
		Tag:           o.ClientOrderID,
		ExtendedHours: o.ExtendedHours,
	}
}

func mapStatus(s string) Status {
	switch s {
	case "filled":
		return StatusFilled
	case "partially_filled":
		return StatusPartiallyFilled
	case "canceled", "expired", "rejected", "stopped":
		return StatusCancelled
	default:
		return StatusSubmitted
	}
}

func sideToAction(s alpaca.Side) Action {
	if s == alpaca.Sell {
		return Sell
	}
	return Buy
}

func actionToSide(a Action) alpaca.Side {
	if a == Sell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

// clientOrderID tags the order with the strategy and a unique suffix; the
// brokerage rejects reused client order IDs.
func clientOrderID(tag string) string {
	id := uuid.NewString()
	if tag == "" {
		return id
	}
	return tag + "-" + id
}
