package order

import (
	"time"

	"webhook-trader/internal/exchange"
)

// Status tracks an order through its lifecycle. Orders leave the store
// entirely once closed or cancelled; these values also tag events.
type Status string

const (
	StatusOpen      Status = "open"
	StatusFilled    Status = "filled"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// Order is a tracked position with its protective levels.
type Order struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Side       exchange.Side `json:"side"`
	Quantity   float64       `json:"quantity"`
	FilledQty  float64       `json:"filled_quantity"`
	EntryPrice float64       `json:"entry_price"`
	StopLoss   float64       `json:"stop_loss"`
	TakeProfit float64       `json:"take_profit"`
	Status     Status        `json:"status"`
	Simulated  bool          `json:"simulated"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Age reports how long the order has been tracked.
func (o Order) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// PnL computes realized profit for a close at exitPrice, signed by
// side. The confirmed fill quantity wins over the requested one.
func (o Order) PnL(exitPrice float64) float64 {
	qty := o.FilledQty
	if qty <= 0 {
		qty = o.Quantity
	}
	diff := exitPrice - o.EntryPrice
	if o.Side == exchange.SideSell {
		diff = -diff
	}
	return diff * qty
}

// CloseQty is the quantity a closing order should carry.
func (o Order) CloseQty() float64 {
	if o.FilledQty > 0 {
		return o.FilledQty
	}
	return o.Quantity
}
