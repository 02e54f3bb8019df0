package exchange

import (
	"context"
	"errors"
	"fmt"
)

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus normalizes venue status into a small set.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "open"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusUnknown   OrderStatus = "unknown"
)

// Balance is the quote-asset balance available for trading.
type Balance struct {
	Free  float64
	Total float64
}

// Market carries the venue constraints needed for sizing and price rounding.
type Market struct {
	Symbol            string
	QuantityPrecision int // decimal places for order quantity
	PricePrecision    int // decimal places for order price
	MinQuantity       float64
	MinNotional       float64 // minimum order value in quote units
}

// OrderState is the venue's view of an order, used for fill confirmation.
type OrderState struct {
	Status    OrderStatus
	FilledQty float64
}

// Client is the narrow boundary to the exchange. Symbols use the normalized
// "BASE/QUOTE" form; implementations translate to venue notation. Every call
// must honor ctx and carry a bounded timeout.
type Client interface {
	FetchBalance(ctx context.Context) (Balance, error)
	FetchTicker(ctx context.Context, symbol string) (float64, error)
	FetchMarket(ctx context.Context, symbol string) (Market, error)
	SubmitLimitOrder(ctx context.Context, symbol string, side Side, qty, price float64) (string, error)
	SubmitMarketOrder(ctx context.Context, symbol string, side Side, qty float64) (string, error)
	FetchOrderStatus(ctx context.Context, orderID, symbol string) (OrderState, error)
	CancelOrder(ctx context.Context, orderID, symbol string) error
}

// VenueError is a rejection by the exchange itself (bad precision, closed
// market, insufficient funds upstream). It is never retried: the same
// request would fail the same way.
type VenueError struct {
	Code int
	Msg  string
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue rejected request (code %d): %s", e.Code, e.Msg)
}

// IsVenueReject reports whether err is a non-retryable venue rejection.
// Everything else coming out of a Client is treated as transient.
func IsVenueReject(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve)
}

// Retryable is the RetryIf predicate for adapter calls.
func Retryable(err error) bool {
	return !IsVenueReject(err)
}
