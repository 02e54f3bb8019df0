package exchange

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Paper is a simulated venue for dry-run operation. Orders fill
// immediately at the submitted price and balances never move.
type Paper struct {
	mu     sync.Mutex
	orders map[string]OrderState
	prices map[string]float64

	balance Balance
}

// NewPaper creates a simulated client with the given quote balance.
func NewPaper(quoteBalance float64) *Paper {
	return &Paper{
		orders:  make(map[string]OrderState),
		prices:  make(map[string]float64),
		balance: Balance{Free: quoteBalance, Total: quoteBalance},
	}
}

// SetPrice seeds the simulated last-trade price for a symbol.
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[strings.ToUpper(symbol)] = price
}

func (p *Paper) FetchBalance(ctx context.Context) (Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *Paper) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	px, ok := p.prices[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("paper: no price seeded for %s", symbol)
	}
	return px, nil
}

func (p *Paper) FetchMarket(ctx context.Context, symbol string) (Market, error) {
	return Market{
		Symbol:            symbol,
		QuantityPrecision: 5,
		PricePrecision:    2,
		MinQuantity:       0.00001,
		MinNotional:       1.0,
	}, nil
}

func (p *Paper) SubmitLimitOrder(ctx context.Context, symbol string, side Side, qty, price float64) (string, error) {
	id := "sim-" + uuid.NewString()
	p.mu.Lock()
	p.orders[id] = OrderState{Status: StatusFilled, FilledQty: qty}
	p.prices[strings.ToUpper(symbol)] = price
	p.mu.Unlock()
	log.Printf("[PAPER] %s %s qty=%v price=%v id=%s", side, symbol, qty, price, id)
	return id, nil
}

func (p *Paper) SubmitMarketOrder(ctx context.Context, symbol string, side Side, qty float64) (string, error) {
	px, err := p.FetchTicker(ctx, symbol)
	if err != nil {
		// Market closes must always succeed in simulation.
		px = 0
	}
	id := "sim-" + uuid.NewString()
	p.mu.Lock()
	p.orders[id] = OrderState{Status: StatusFilled, FilledQty: qty}
	p.mu.Unlock()
	log.Printf("[PAPER] %s %s qty=%v @market(~%v) id=%s", side, symbol, qty, px, id)
	return id, nil
}

func (p *Paper) FetchOrderStatus(ctx context.Context, orderID, symbol string) (OrderState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.orders[orderID]
	if !ok {
		return OrderState{Status: StatusUnknown}, nil
	}
	return st, nil
}

func (p *Paper) CancelOrder(ctx context.Context, orderID, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.orders[orderID]; ok && st.Status == StatusOpen {
		st.Status = StatusCancelled
		p.orders[orderID] = st
	}
	return nil
}
