package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"webhook-trader/internal/events"
	"webhook-trader/internal/exchange"
	"webhook-trader/internal/order"
	"webhook-trader/internal/risk"
)

// fakeVenue is a scriptable exchange.Client for pipeline tests.
type fakeVenue struct {
	balance   exchange.Balance
	ticker    float64
	tickerErr error
	market    exchange.Market
	submitErr error
	submitted []string // "side symbol qty price"
	closes    int
}

func (f *fakeVenue) FetchBalance(ctx context.Context) (exchange.Balance, error) {
	return f.balance, nil
}

func (f *fakeVenue) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	return f.ticker, f.tickerErr
}

func (f *fakeVenue) FetchMarket(ctx context.Context, symbol string) (exchange.Market, error) {
	return f.market, nil
}

func (f *fakeVenue) SubmitLimitOrder(ctx context.Context, symbol string, side exchange.Side, qty, price float64) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, string(side))
	return "order-1", nil
}

func (f *fakeVenue) SubmitMarketOrder(ctx context.Context, symbol string, side exchange.Side, qty float64) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.closes++
	return "order-close", nil
}

func (f *fakeVenue) FetchOrderStatus(ctx context.Context, orderID, symbol string) (exchange.OrderState, error) {
	return exchange.OrderState{Status: exchange.StatusFilled}, nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, orderID, symbol string) error {
	return nil
}

func defaultVenue() *fakeVenue {
	return &fakeVenue{
		balance: exchange.Balance{Free: 1010, Total: 1010},
		ticker:  50000,
		market: exchange.Market{
			Symbol:            "BTC/USDT",
			QuantityPrecision: 5,
			PricePrecision:    2,
			MinQuantity:       0.00001,
			MinNotional:       1.0,
		},
	}
}

func newTestEngine(t *testing.T, p risk.Policy, venue exchange.Client, simulated bool) (*Engine, *order.Store, *risk.Ledger, *events.Bus) {
	t.Helper()
	store := order.NewStore()
	ledger := risk.NewLedger(time.UTC)
	gate := risk.NewGate(p, ledger, venue, store.Len)
	bus := events.NewBus()
	e := New(p, gate, risk.NewSizer(p), venue, store, ledger, bus, simulated)
	e.retryConf.Delay = 0
	return e, store, ledger, bus
}

func TestHandleSignalEndToEnd(t *testing.T) {
	venue := defaultVenue()
	e, store, _, _ := newTestEngine(t, risk.DefaultPolicy(), venue, false)

	rec, err := e.HandleSignal(context.Background(), Signal{
		Action:   "buy",
		Symbol:   "BTCUSD",
		Price:    50000,
		StopLoss: 49000,
	})
	if err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if rec.Symbol != "BTC/USDT" {
		t.Errorf("symbol = %s, want normalized BTC/USDT", rec.Symbol)
	}
	if rec.Quantity != 0.01 {
		t.Errorf("quantity = %v, want 0.01", rec.Quantity)
	}
	if rec.StopLoss != 49000 {
		t.Errorf("stop = %v, want 49000", rec.StopLoss)
	}
	// Omitted take profit defaults 4% above entry.
	if math.Abs(rec.TakeProfit-52000) > 1e-6 {
		t.Errorf("take profit = %v, want 52000", rec.TakeProfit)
	}
	if store.Len() != 1 {
		t.Fatalf("store len = %d, want 1", store.Len())
	}
	o, ok := store.Get(rec.OrderID)
	if !ok || o.Status != order.StatusOpen {
		t.Errorf("stored order = %+v", o)
	}
}

func TestHandleSignalDefaultsLevelsFromTicker(t *testing.T) {
	venue := defaultVenue()
	e, _, _, _ := newTestEngine(t, risk.DefaultPolicy(), venue, false)

	rec, err := e.HandleSignal(context.Background(), Signal{Action: "buy", Symbol: "BTC/USDT"})
	if err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if rec.EntryPrice != 50000 {
		t.Errorf("entry = %v, want ticker 50000", rec.EntryPrice)
	}
	if math.Abs(rec.StopLoss-49000) > 1e-6 {
		t.Errorf("default stop = %v, want 49000 (2%%)", rec.StopLoss)
	}
}

func TestHandleSignalShortLevelInvariant(t *testing.T) {
	venue := defaultVenue()
	e, _, _, _ := newTestEngine(t, risk.DefaultPolicy(), venue, false)

	// Short with stop below entry violates the ordering.
	_, err := e.HandleSignal(context.Background(), Signal{
		Action: "sell", Symbol: "BTC/USDT", Price: 50000, StopLoss: 49000,
	})
	if !IsReject(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if !strings.Contains(err.Error(), "above entry") {
		t.Errorf("err = %v", err)
	}
}

func TestHandleSignalRejectsBadAction(t *testing.T) {
	e, store, _, _ := newTestEngine(t, risk.DefaultPolicy(), defaultVenue(), false)
	_, err := e.HandleSignal(context.Background(), Signal{Action: "hold", Symbol: "BTC/USDT"})
	if !IsReject(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("rejected signal must not create a record")
	}
}

func TestHandleSignalGateDenial(t *testing.T) {
	p := risk.DefaultPolicy()
	p.TradingEnabled = false
	e, _, _, _ := newTestEngine(t, p, defaultVenue(), false)

	_, err := e.HandleSignal(context.Background(), Signal{Action: "buy", Symbol: "BTC/USDT", Price: 50000})
	var re *RejectError
	if !errors.As(err, &re) || re.Stage != "gate" {
		t.Fatalf("expected gate rejection, got %v", err)
	}
}

func TestHandleSignalExecFailureLeavesNoRecord(t *testing.T) {
	venue := defaultVenue()
	venue.submitErr = errors.New("gateway timeout")
	e, store, ledger, _ := newTestEngine(t, risk.DefaultPolicy(), venue, false)

	_, err := e.HandleSignal(context.Background(), Signal{
		Action: "buy", Symbol: "BTC/USDT", Price: 50000, StopLoss: 49000,
	})
	if !IsExec(err) {
		t.Fatalf("expected exec error, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("failed submission must leave no record")
	}
	if ledger.Snapshot().Trades != 0 {
		t.Error("failed submission must not count as a trade")
	}
}

func TestHandleSignalSlippagePadsLimitPrice(t *testing.T) {
	p := risk.DefaultPolicy()
	p.SlippagePct = 0.001
	venue := defaultVenue()

	var gotPrice float64
	wrapped := &priceCapture{fakeVenue: venue, price: &gotPrice}
	e, _, _, _ := newTestEngine(t, p, wrapped, false)

	_, err := e.HandleSignal(context.Background(), Signal{
		Action: "buy", Symbol: "BTC/USDT", Price: 50000, StopLoss: 49000,
	})
	if err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if gotPrice != 50050 {
		t.Errorf("limit price = %v, want 50050 (0.1%% pad)", gotPrice)
	}
}

type priceCapture struct {
	*fakeVenue
	price *float64
}

func (p *priceCapture) SubmitLimitOrder(ctx context.Context, symbol string, side exchange.Side, qty, price float64) (string, error) {
	*p.price = price
	return p.fakeVenue.SubmitLimitOrder(ctx, symbol, side, qty, price)
}

func TestCloseAllFlattensAndSettles(t *testing.T) {
	venue := defaultVenue()
	e, store, ledger, bus := newTestEngine(t, risk.DefaultPolicy(), venue, false)

	sub := bus.Subscribe(events.EventPositionClosed, 4)
	defer sub.Close()

	if _, err := e.HandleSignal(context.Background(), Signal{
		Action: "buy", Symbol: "BTC/USDT", Price: 50000, StopLoss: 49000,
	}); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}

	venue.ticker = 49000 // price dropped before the flatten
	res := e.CloseAll(context.Background(), "close_all")
	if res.Closed != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if store.Len() != 0 {
		t.Error("closed position must leave the store")
	}
	if got := ledger.PnL(); math.Abs(got-(-10)) > 1e-9 {
		t.Errorf("daily pnl = %v, want -10", got)
	}

	select {
	case raw := <-sub.C:
		pc, ok := raw.(events.PositionClosed)
		if !ok {
			t.Fatalf("payload type %T", raw)
		}
		if pc.Reason != "close_all" || math.Abs(pc.PnL-(-10)) > 1e-9 {
			t.Errorf("event = %+v", pc)
		}
	default:
		t.Fatal("expected a position-closed event")
	}
}

func TestCloseAllFailureKeepsOrder(t *testing.T) {
	venue := defaultVenue()
	e, store, _, _ := newTestEngine(t, risk.DefaultPolicy(), venue, false)

	if _, err := e.HandleSignal(context.Background(), Signal{
		Action: "buy", Symbol: "BTC/USDT", Price: 50000, StopLoss: 49000,
	}); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}

	venue.submitErr = errors.New("venue unavailable")
	res := e.CloseAll(context.Background(), "close_all")
	if res.Failed != 1 || res.Closed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if store.Len() != 1 {
		t.Error("failed close must keep the order tracked")
	}
	o := store.Snapshot()[0]
	if o.Status != order.StatusOpen {
		t.Errorf("status = %s, want open restored", o.Status)
	}
}

func TestCloseAllSkipsPositionWithoutPrice(t *testing.T) {
	venue := defaultVenue()
	e, store, ledger, _ := newTestEngine(t, risk.DefaultPolicy(), venue, false)

	if _, err := e.HandleSignal(context.Background(), Signal{
		Action: "buy", Symbol: "BTC/USDT", Price: 50000, StopLoss: 49000,
	}); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}

	venue.tickerErr = errors.New("ticker unavailable")
	res := e.CloseAll(context.Background(), "close_all")
	if res.Failed != 1 || res.Closed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if venue.closes != 0 {
		t.Errorf("market closes = %d, want none without an exit price", venue.closes)
	}
	if got := ledger.PnL(); got != 0 {
		t.Errorf("daily pnl = %v, want untouched 0", got)
	}
	if store.Len() != 1 {
		t.Fatal("order must stay tracked for the monitor")
	}
	if o := store.Snapshot()[0]; o.Status != order.StatusOpen {
		t.Errorf("status = %s, want open restored", o.Status)
	}
}
