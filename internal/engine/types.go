package engine

import (
	"errors"
	"fmt"
)

// Signal is an incoming trade instruction, typically posted by a
// charting platform's webhook. Price levels are optional; the engine
// fills in the last trade price and default protective levels.
type Signal struct {
	Action     string  `json:"action"`      // "buy" or "sell"
	Symbol     string  `json:"symbol"`      // e.g. "BTCUSD" or "BTC/USDT"
	Price      float64 `json:"price"`       // optional entry hint
	StopLoss   float64 `json:"stop_loss"`   // optional
	TakeProfit float64 `json:"take_profit"` // optional
}

// Receipt describes what the engine did with an accepted signal.
type Receipt struct {
	OrderID     string  `json:"order_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
	EntryPrice  float64 `json:"entry_price"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit  float64 `json:"take_profit"`
	Simulated   bool    `json:"simulated"`
	TradesToday int     `json:"trades_today"`
}

// RejectError means the signal was refused before reaching the venue:
// malformed input or a safety-gate denial. Maps to a 4xx response.
type RejectError struct {
	Stage  string // "validation", "gate", "sizing"
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Stage, e.Reason)
}

// ExecError means the venue refused or never acknowledged the order
// after the signal passed all checks. Maps to a 502 response.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string { return "order execution failed: " + e.Err.Error() }
func (e *ExecError) Unwrap() error { return e.Err }

// IsReject reports whether err is a pre-venue rejection.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

// IsExec reports whether err is a venue execution failure.
func IsExec(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee)
}
