// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_signals_received_total",
		Help: "Webhook signals received, before any validation.",
	})

	SignalsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_signals_rejected_total",
		Help: "Signals rejected, labeled by rejection stage.",
	}, []string{"stage"})

	OrdersOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_orders_opened_total",
		Help: "Orders accepted by the venue, labeled by symbol and side.",
	}, []string{"symbol", "side"})

	OrdersClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_orders_closed_total",
		Help: "Positions closed, labeled by close reason.",
	}, []string{"reason"})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_open_positions",
		Help: "Positions currently tracked by the monitor.",
	})

	DailyPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_daily_pnl",
		Help: "Realized P&L for the current calendar day, quote units.",
	})

	VenueRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_venue_errors_total",
		Help: "Venue request failures, labeled by operation.",
	}, []string{"op"})
)
