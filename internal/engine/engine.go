package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"webhook-trader/internal/events"
	"webhook-trader/internal/exchange"
	"webhook-trader/internal/metrics"
	"webhook-trader/internal/order"
	"webhook-trader/internal/risk"
	"webhook-trader/pkg/retry"
)

// Engine turns validated signals into sized, protected venue orders.
type Engine struct {
	policy risk.Policy
	gate   *risk.Gate
	sizer  *risk.Sizer
	client exchange.Client
	store  *order.Store
	ledger *risk.Ledger
	bus    *events.Bus

	simulated bool
	retryConf retry.Config
	now       func() time.Time
}

// New wires the engine. simulated tags every record it creates and
// skips fill confirmation downstream.
func New(policy risk.Policy, gate *risk.Gate, sizer *risk.Sizer, client exchange.Client,
	store *order.Store, ledger *risk.Ledger, bus *events.Bus, simulated bool) *Engine {
	return &Engine{
		policy:    policy,
		gate:      gate,
		sizer:     sizer,
		client:    client,
		store:     store,
		ledger:    ledger,
		bus:       bus,
		simulated: simulated,
		retryConf: retry.Config{
			MaxAttempts: 3,
			Delay:       2 * time.Second,
			RetryIf:     exchange.Retryable,
			OnRetry: func(attempt int, err error) {
				log.Printf("[ENGINE] venue call attempt %d failed: %v", attempt, err)
			},
		},
		now: time.Now,
	}
}

// HandleSignal runs the full intake pipeline: validate, gate, size,
// submit, record. On success the order is in the store and the monitor
// takes over its lifecycle. A failed venue submission leaves no record.
func (e *Engine) HandleSignal(ctx context.Context, sig Signal) (Receipt, error) {
	metrics.SignalsReceived.Inc()

	reject := func(stage, reason string) (Receipt, error) {
		metrics.SignalsRejected.WithLabelValues(stage).Inc()
		e.bus.Publish(events.EventSignalRejected, map[string]string{
			"symbol": sig.Symbol, "stage": stage, "reason": reason,
		})
		log.Printf("[ENGINE] signal rejected (%s): %s", stage, reason)
		return Receipt{}, &RejectError{Stage: stage, Reason: reason}
	}

	action := strings.ToLower(strings.TrimSpace(sig.Action))
	var side exchange.Side
	switch action {
	case "buy", "long":
		side = exchange.SideBuy
	case "sell", "short":
		side = exchange.SideSell
	default:
		return reject("validation", "action must be buy or sell, got "+sig.Action)
	}
	if strings.TrimSpace(sig.Symbol) == "" {
		return reject("validation", "symbol is required")
	}
	symbol := e.policy.NormalizeSymbol(sig.Symbol)

	e.bus.Publish(events.EventSignalReceived, map[string]string{
		"symbol": symbol, "action": action,
	})

	decision := e.gate.Check(ctx, symbol)
	if !decision.Allowed {
		e.bus.Publish(events.EventRiskAlert, "blocked "+action+" "+symbol+": "+decision.Reason)
		return reject("gate", decision.Reason)
	}

	entry := sig.Price
	if entry <= 0 {
		px, err := retry.Do(ctx, e.retryConf, func(ctx context.Context) (float64, error) {
			return e.client.FetchTicker(ctx, symbol)
		})
		if err != nil {
			metrics.VenueRequestErrors.WithLabelValues("ticker").Inc()
			return Receipt{}, &ExecError{Err: err}
		}
		entry = px
	}

	stop, target := e.protectiveLevels(side, entry, sig.StopLoss, sig.TakeProfit)
	if reason := checkLevels(side, entry, stop, target); reason != "" {
		return reject("validation", reason)
	}

	mkt, err := retry.Do(ctx, e.retryConf, func(ctx context.Context) (exchange.Market, error) {
		return e.client.FetchMarket(ctx, symbol)
	})
	if err != nil {
		metrics.VenueRequestErrors.WithLabelValues("market").Inc()
		return Receipt{}, &ExecError{Err: err}
	}

	size := e.sizer.Size(decision.Usable, entry, stop, mkt)
	if size.Quantity <= 0 {
		return reject("sizing", size.Reason)
	}

	limitPrice := entry
	if e.policy.SlippagePct > 0 {
		pad := entry * e.policy.SlippagePct
		if side == exchange.SideBuy {
			limitPrice = entry + pad
		} else {
			limitPrice = entry - pad
		}
	}
	limitPrice = exchange.RoundToPrecision(limitPrice, mkt.PricePrecision)

	orderID, err := retry.Do(ctx, e.retryConf, func(ctx context.Context) (string, error) {
		return e.client.SubmitLimitOrder(ctx, symbol, side, size.Quantity, limitPrice)
	})
	if err != nil {
		metrics.VenueRequestErrors.WithLabelValues("submit").Inc()
		log.Printf("[ENGINE] order submission failed for %s: %v", symbol, err)
		return Receipt{}, &ExecError{Err: err}
	}
	if e.simulated && orderID == "" {
		orderID = "sim-" + uuid.NewString()
	}

	o := order.Order{
		ID:         orderID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   size.Quantity,
		FilledQty:  size.Quantity,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		Status:     order.StatusOpen,
		Simulated:  e.simulated,
		CreatedAt:  e.now(),
	}
	if e.simulated {
		o.Status = order.StatusFilled
	}
	e.store.Insert(o)
	e.ledger.IncTrades()

	metrics.OrdersOpened.WithLabelValues(symbol, string(side)).Inc()
	metrics.OpenPositions.Set(float64(e.store.Len()))
	e.bus.Publish(events.EventOrderOpened, o)
	log.Printf("[ENGINE] opened %s %s qty=%v entry=%v sl=%v tp=%v id=%s simulated=%v",
		side, symbol, size.Quantity, entry, stop, target, orderID, e.simulated)

	return Receipt{
		OrderID:     orderID,
		Symbol:      symbol,
		Side:        string(side),
		Quantity:    size.Quantity,
		EntryPrice:  entry,
		StopLoss:    stop,
		TakeProfit:  target,
		Simulated:   e.simulated,
		TradesToday: e.ledger.Snapshot().Trades,
	}, nil
}

// protectiveLevels fills in missing stop/target from the policy
// defaults, mirrored for shorts.
func (e *Engine) protectiveLevels(side exchange.Side, entry, stop, target float64) (float64, float64) {
	slPct := e.policy.DefaultStopLossPct
	tpPct := e.policy.DefaultTakeProfitPct
	if side == exchange.SideBuy {
		if stop <= 0 {
			stop = entry * (1 - slPct)
		}
		if target <= 0 {
			target = entry * (1 + tpPct)
		}
	} else {
		if stop <= 0 {
			stop = entry * (1 + slPct)
		}
		if target <= 0 {
			target = entry * (1 - tpPct)
		}
	}
	return stop, target
}

// checkLevels enforces the side ordering invariant:
// long  SL < entry < TP, short TP < entry < SL.
func checkLevels(side exchange.Side, entry, stop, target float64) string {
	if side == exchange.SideBuy {
		if stop >= entry {
			return "stop loss must be below entry for a long"
		}
		if target <= entry {
			return "take profit must be above entry for a long"
		}
	} else {
		if stop <= entry {
			return "stop loss must be above entry for a short"
		}
		if target >= entry {
			return "take profit must be below entry for a short"
		}
	}
	return ""
}

// CloseAllResult summarizes a flatten-everything pass.
type CloseAllResult struct {
	Closed int `json:"closed"`
	Failed int `json:"failed"`
}

// CloseAll market-closes every tracked position, tagging the settlement
// with reason. Orders whose close submission fails stay in the store
// for the monitor to retry later.
func (e *Engine) CloseAll(ctx context.Context, reason string) CloseAllResult {
	if reason == "" {
		reason = "close_all"
	}
	var res CloseAllResult
	for _, o := range e.store.Snapshot() {
		if !e.store.Transition(o.ID, o.Status, order.StatusClosed) {
			continue // another path already claimed it
		}
		// No price, no close: flattening at an unknown price would
		// commit a fabricated P&L to the ledger the gate trades on.
		// The order stays tracked for the monitor to settle later.
		exit, err := retry.Do(ctx, e.retryConf, func(ctx context.Context) (float64, error) {
			return e.client.FetchTicker(ctx, o.Symbol)
		})
		if err != nil || exit <= 0 {
			e.store.Transition(o.ID, order.StatusClosed, o.Status)
			metrics.VenueRequestErrors.WithLabelValues("ticker").Inc()
			log.Printf("[ENGINE] %s skipped %s, no price available: %v", reason, o.ID, err)
			res.Failed++
			continue
		}
		_, err = retry.Do(ctx, e.retryConf, func(ctx context.Context) (string, error) {
			return e.client.SubmitMarketOrder(ctx, o.Symbol, o.Side.Opposite(), o.CloseQty())
		})
		if err != nil {
			e.store.Transition(o.ID, order.StatusClosed, o.Status)
			metrics.VenueRequestErrors.WithLabelValues("close").Inc()
			log.Printf("[ENGINE] close_all failed for %s: %v", o.ID, err)
			res.Failed++
			continue
		}

		pnl := o.PnL(exit)
		daily := e.ledger.AddPnL(pnl)
		e.store.Remove(o.ID)

		metrics.OrdersClosed.WithLabelValues(reason).Inc()
		metrics.OpenPositions.Set(float64(e.store.Len()))
		metrics.DailyPnL.Set(daily)
		e.bus.Publish(events.EventPositionClosed, events.PositionClosed{
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Side:      string(o.Side),
			Quantity:  o.CloseQty(),
			Entry:     o.EntryPrice,
			Exit:      exit,
			PnL:       pnl,
			Reason:    reason,
			DailyPnL:  daily,
			Simulated: o.Simulated,
		})
		log.Printf("[ENGINE] %s closed %s %s pnl=%.2f daily=%.2f", reason, o.Symbol, o.ID, pnl, daily)
		res.Closed++
	}
	return res
}

// Status reports the engine's health summary.
type Status struct {
	Simulated      bool                `json:"simulated"`
	TradingEnabled bool                `json:"trading_enabled"`
	OpenPositions  int                 `json:"open_positions"`
	Daily          risk.LedgerSnapshot `json:"daily"`
}

func (e *Engine) Status() Status {
	return Status{
		Simulated:      e.simulated,
		TradingEnabled: e.policy.TradingEnabled,
		OpenPositions:  e.store.Len(),
		Daily:          e.ledger.Snapshot(),
	}
}

// Positions returns copies of every tracked order.
func (e *Engine) Positions() []order.Order {
	return e.store.Snapshot()
}

// Balance fetches the venue balance for reporting. Best-effort: health
// checks should not fail because the venue is briefly unreachable.
func (e *Engine) Balance(ctx context.Context) (exchange.Balance, error) {
	return e.client.FetchBalance(ctx)
}
