package risk

import (
	"fmt"
	"math"

	"webhook-trader/internal/exchange"
)

// SizeResult carries the computed quantity, or a zero quantity with
// the reason sizing produced nothing tradable.
type SizeResult struct {
	Quantity float64
	Notional float64
	Risk     float64
	Reason   string
}

// Sizer turns a risk budget and stop distance into an order quantity.
type Sizer struct {
	policy Policy
}

func NewSizer(policy Policy) *Sizer {
	return &Sizer{policy: policy}
}

// Size computes the order quantity for an entry at entryPrice with a
// protective stop at stopPrice, given the usable quote balance. The
// quantity is floored to the market's precision so the realized
// notional never exceeds the computed caps.
func (s *Sizer) Size(usable, entryPrice, stopPrice float64, mkt exchange.Market) SizeResult {
	if entryPrice <= 0 {
		return SizeResult{Reason: "entry price must be positive"}
	}
	if usable <= 0 {
		return SizeResult{Reason: "no usable balance"}
	}

	stopDist := math.Abs(entryPrice-stopPrice) / entryPrice
	if stopDist <= 0 {
		return SizeResult{Reason: "stop distance is zero"}
	}

	risk := usable * s.policy.RiskPerTradePct
	if s.policy.MaxRiskAbsolute > 0 && risk > s.policy.MaxRiskAbsolute {
		risk = s.policy.MaxRiskAbsolute
	}

	notional := risk / stopDist
	if s.policy.MaxNotional > 0 && notional > s.policy.MaxNotional {
		notional = s.policy.MaxNotional
	}
	if ceiling := usable * s.policy.CapitalUsePct; notional > ceiling {
		notional = ceiling
	}

	qty := exchange.FloorToPrecision(notional/entryPrice, mkt.QuantityPrecision)
	if qty <= 0 {
		return SizeResult{Reason: "computed quantity rounds to zero"}
	}
	if mkt.MinQuantity > 0 && qty < mkt.MinQuantity {
		return SizeResult{Reason: fmt.Sprintf("quantity %v below market minimum %v", qty, mkt.MinQuantity)}
	}
	actualNotional := qty * entryPrice
	if mkt.MinNotional > 0 && actualNotional < mkt.MinNotional {
		return SizeResult{Reason: fmt.Sprintf("notional %.2f below market minimum %.2f", actualNotional, mkt.MinNotional)}
	}

	return SizeResult{Quantity: qty, Notional: actualNotional, Risk: risk}
}
