// Package monitor runs the background lifecycle sweep: it confirms
// fills, cancels stale orders, and closes positions whose stop-loss or
// take-profit level has been crossed.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"webhook-trader/internal/events"
	"webhook-trader/internal/exchange"
	"webhook-trader/internal/metrics"
	"webhook-trader/internal/order"
	"webhook-trader/internal/risk"
	"webhook-trader/pkg/retry"
)

// Monitor sweeps the order book on a fixed interval. A single
// goroutine owns the loop; each order is handled independently so one
// failure never stalls the rest of the sweep.
type Monitor struct {
	policy risk.Policy
	client exchange.Client
	store  *order.Store
	ledger *risk.Ledger
	bus    *events.Bus

	retryConf retry.Config
	now       func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func New(policy risk.Policy, client exchange.Client, store *order.Store,
	ledger *risk.Ledger, bus *events.Bus) *Monitor {
	return &Monitor{
		policy: policy,
		client: client,
		store:  store,
		ledger: ledger,
		bus:    bus,
		retryConf: retry.Config{
			MaxAttempts: 3,
			Delay:       time.Second,
			RetryIf:     exchange.Retryable,
		},
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the sweep loop. Stop waits for an in-flight sweep to
// finish before returning.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)
	interval := m.policy.MonitorInterval.Std()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[MONITOR] started, interval=%s timeout=%s", interval, m.policy.OrderTimeout.Std())
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over every tracked order.
func (m *Monitor) Sweep(ctx context.Context) {
	m.ledger.Roll()
	for _, o := range m.store.Snapshot() {
		m.checkOrder(ctx, o)
	}
	metrics.OpenPositions.Set(float64(m.store.Len()))
}

// checkOrder handles one order; panics are contained so a bad order
// cannot take down the sweep loop.
func (m *Monitor) checkOrder(ctx context.Context, o order.Order) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[MONITOR] panic checking order %s: %v", o.ID, r)
		}
	}()

	// Stale unfilled orders get cancelled rather than monitored forever.
	if o.Status == order.StatusOpen && m.policy.OrderTimeout > 0 && o.Age(m.now()) > m.policy.OrderTimeout.Std() {
		m.cancelStale(ctx, o)
		return
	}

	// Live orders need a confirmed fill before exit levels apply.
	// Simulated orders fill at submission.
	if o.Status == order.StatusOpen && !o.Simulated {
		st, err := retry.Do(ctx, m.retryConf, func(ctx context.Context) (exchange.OrderState, error) {
			return m.client.FetchOrderStatus(ctx, o.ID, o.Symbol)
		})
		if err != nil {
			metrics.VenueRequestErrors.WithLabelValues("order_status").Inc()
			log.Printf("[MONITOR] fill check failed for %s: %v", o.ID, err)
			return
		}
		switch st.Status {
		case exchange.StatusFilled:
			if m.store.Transition(o.ID, order.StatusOpen, order.StatusFilled) {
				if st.FilledQty > 0 {
					m.store.SetFill(o.ID, st.FilledQty)
				}
				m.bus.Publish(events.EventOrderFilled, o.ID)
				log.Printf("[MONITOR] order %s filled qty=%v", o.ID, st.FilledQty)
			}
		case exchange.StatusCancelled:
			if m.store.Transition(o.ID, order.StatusOpen, order.StatusCancelled) {
				m.store.Remove(o.ID)
				m.bus.Publish(events.EventOrderCancelled, o.ID)
				log.Printf("[MONITOR] order %s cancelled at the venue", o.ID)
			}
		}
		return
	}

	px, err := retry.Do(ctx, m.retryConf, func(ctx context.Context) (float64, error) {
		return m.client.FetchTicker(ctx, o.Symbol)
	})
	if err != nil || px <= 0 {
		// Skip this order this sweep; the next tick tries again.
		metrics.VenueRequestErrors.WithLabelValues("ticker").Inc()
		log.Printf("[MONITOR] price fetch failed for %s: %v", o.Symbol, err)
		return
	}

	reason := exitReason(o, px)
	if reason == "" {
		return
	}
	m.closePosition(ctx, o, px, reason)
}

// exitReason reports which protective level px has crossed, or "".
func exitReason(o order.Order, px float64) string {
	if o.Side == exchange.SideBuy {
		if o.StopLoss > 0 && px <= o.StopLoss {
			return "stop_loss"
		}
		if o.TakeProfit > 0 && px >= o.TakeProfit {
			return "take_profit"
		}
		return ""
	}
	if o.StopLoss > 0 && px >= o.StopLoss {
		return "stop_loss"
	}
	if o.TakeProfit > 0 && px <= o.TakeProfit {
		return "take_profit"
	}
	return ""
}

func (m *Monitor) cancelStale(ctx context.Context, o order.Order) {
	if !m.store.Transition(o.ID, order.StatusOpen, order.StatusCancelled) {
		return
	}
	if !o.Simulated {
		if err := retry.Run(ctx, m.retryConf, func(ctx context.Context) error {
			return m.client.CancelOrder(ctx, o.ID, o.Symbol)
		}); err != nil {
			metrics.VenueRequestErrors.WithLabelValues("cancel").Inc()
			log.Printf("[MONITOR] cancel failed for stale order %s: %v", o.ID, err)
			m.store.Transition(o.ID, order.StatusCancelled, order.StatusOpen)
			return
		}
	}
	m.store.Remove(o.ID)
	metrics.OrdersClosed.WithLabelValues("timeout").Inc()
	m.bus.Publish(events.EventOrderCancelled, o.ID)
	log.Printf("[MONITOR] cancelled stale order %s after %s", o.ID, o.Age(m.now()).Round(time.Second))
}

// closePosition market-closes the position and settles it into the
// ledger. The ledger commit and the store removal happen together; a
// failed close leaves the order tracked for the next sweep.
func (m *Monitor) closePosition(ctx context.Context, o order.Order, exit float64, reason string) {
	if !m.store.Transition(o.ID, o.Status, order.StatusClosed) {
		return
	}
	_, err := retry.Do(ctx, m.retryConf, func(ctx context.Context) (string, error) {
		return m.client.SubmitMarketOrder(ctx, o.Symbol, o.Side.Opposite(), o.CloseQty())
	})
	if err != nil {
		metrics.VenueRequestErrors.WithLabelValues("close").Inc()
		log.Printf("[MONITOR] close failed for %s (%s): %v", o.ID, reason, err)
		m.store.Transition(o.ID, order.StatusClosed, o.Status)
		return
	}

	pnl := o.PnL(exit)
	daily := m.ledger.AddPnL(pnl)
	m.store.Remove(o.ID)

	metrics.OrdersClosed.WithLabelValues(reason).Inc()
	metrics.DailyPnL.Set(daily)
	m.bus.Publish(events.EventPositionClosed, events.PositionClosed{
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
	log.Printf("[MONITOR] closed %s %s via %s at %v pnl=%.2f daily=%.2f",
		o.Symbol, o.ID, reason, exit, pnl, daily)
}
