package risk

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"webhook-trader/internal/exchange"
	"webhook-trader/pkg/retry"
)

// Decision is the gate's verdict on a proposed trade.
type Decision struct {
	Allowed bool
	Reason  string
	// Usable is the quote balance available for sizing when allowed.
	Usable float64
}

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Gate runs the pre-trade safety checks in a fixed order. Each check
// short-circuits: the first failure is the reported reason.
type Gate struct {
	policy Policy
	ledger *Ledger
	client exchange.Client

	// openCount reports how many positions are currently tracked.
	openCount func() int

	retryConf retry.Config
	now       func() time.Time
}

// NewGate wires the gate to its policy, ledger and venue client.
func NewGate(policy Policy, ledger *Ledger, client exchange.Client, openCount func() int) *Gate {
	return &Gate{
		policy:    policy,
		ledger:    ledger,
		client:    client,
		openCount: openCount,
		retryConf: retry.Config{
			MaxAttempts: 3,
			Delay:       time.Second,
			RetryIf:     exchange.Retryable,
			OnRetry: func(attempt int, err error) {
				log.Printf("[GATE] balance fetch attempt %d failed: %v", attempt, err)
			},
		},
		now: time.Now,
	}
}

// Check evaluates the gate for the given normalized symbol. The symbol
// must already have passed through Policy.NormalizeSymbol.
func (g *Gate) Check(ctx context.Context, symbol string) Decision {
	if !g.policy.TradingEnabled {
		return deny("trading disabled by policy")
	}

	g.ledger.Roll()

	// Runaway gains trip the limit too: P&L far outside the expected
	// band either way means something is wrong with the strategy or
	// the feed.
	if g.policy.MaxDailyLoss > 0 {
		pnl := g.ledger.PnL()
		if math.Abs(pnl) >= g.policy.MaxDailyLoss {
			return deny("daily loss limit reached: |%.2f| >= %.2f", pnl, g.policy.MaxDailyLoss)
		}
	}

	if open := g.openCount(); open >= g.policy.MaxOpenPositions {
		return deny("max open positions reached: %d/%d", open, g.policy.MaxOpenPositions)
	}

	if !g.policy.SymbolAllowed(symbol) {
		return deny("symbol %s not in allowed list", symbol)
	}

	bal, err := retry.Do(ctx, g.retryConf, func(ctx context.Context) (exchange.Balance, error) {
		return g.client.FetchBalance(ctx)
	})
	if err != nil {
		return deny("balance check failed: %v", err)
	}
	usable := bal.Free - g.policy.MinReserve
	if usable <= 0 {
		return deny("balance %.2f below reserve %.2f", bal.Free, g.policy.MinReserve)
	}

	if g.policy.InRestrictedHours(g.now()) {
		return deny("inside restricted trading hours")
	}

	return Decision{Allowed: true, Usable: math.Max(usable, 0)}
}
