package risk

import (
	"strings"
	"testing"

	"webhook-trader/internal/exchange"
)

var testMarket = exchange.Market{
	Symbol:            "BTC/USDT",
	QuantityPrecision: 5,
	PricePrecision:    2,
	MinQuantity:       0.00001,
	MinNotional:       1.0,
}

func TestSizerReferenceCase(t *testing.T) {
	// usable 1000, 1% risk = 10, stop 2% away => notional 500,
	// qty = 500 / 50000 = 0.01.
	p := DefaultPolicy()
	s := NewSizer(p)

	res := s.Size(1000, 50000, 49000, testMarket)
	if res.Reason != "" {
		t.Fatalf("unexpected reject: %s", res.Reason)
	}
	if res.Quantity != 0.01 {
		t.Errorf("quantity = %v, want 0.01", res.Quantity)
	}
	if res.Risk != 10 {
		t.Errorf("risk = %v, want 10", res.Risk)
	}
	if res.Notional != 500 {
		t.Errorf("notional = %v, want 500", res.Notional)
	}
}

func TestSizerCapsNotional(t *testing.T) {
	p := DefaultPolicy()
	p.MaxNotional = 200
	s := NewSizer(p)

	res := s.Size(1000, 50000, 49000, testMarket)
	if res.Notional > 200 {
		t.Errorf("notional %v exceeds max 200", res.Notional)
	}
}

func TestSizerCapsCapitalUse(t *testing.T) {
	p := DefaultPolicy()
	p.CapitalUsePct = 0.8
	p.MaxNotional = 1e9
	s := NewSizer(p)

	// Tiny stop distance drives raw notional far above the balance.
	res := s.Size(1000, 50000, 49999, testMarket)
	if res.Notional > 800 {
		t.Errorf("notional %v exceeds 80%% of usable", res.Notional)
	}
	if res.Quantity <= 0 {
		t.Fatalf("expected a tradable quantity, got: %s", res.Reason)
	}
}

func TestSizerCapsAbsoluteRisk(t *testing.T) {
	p := DefaultPolicy()
	p.MaxRiskAbsolute = 5
	s := NewSizer(p)

	res := s.Size(1000, 50000, 49000, testMarket)
	if res.Risk != 5 {
		t.Errorf("risk = %v, want capped at 5", res.Risk)
	}
}

func TestSizerFloorsQuantity(t *testing.T) {
	p := DefaultPolicy()
	s := NewSizer(p)

	mkt := testMarket
	mkt.QuantityPrecision = 2
	res := s.Size(1000, 3333, 3266.34, mkt) // raw qty ~0.15001...
	if res.Quantity <= 0 {
		t.Fatalf("unexpected reject: %s", res.Reason)
	}
	// Floored quantity must never push notional past the raw caps.
	if res.Quantity*3333 > 510 {
		t.Errorf("floored notional %v too high", res.Quantity*3333)
	}
}

func TestSizerRejections(t *testing.T) {
	p := DefaultPolicy()
	s := NewSizer(p)

	cases := []struct {
		name    string
		usable  float64
		entry   float64
		stop    float64
		mkt     exchange.Market
		keyword string
	}{
		{"zero balance", 0, 50000, 49000, testMarket, "usable"},
		{"zero entry", 1000, 0, 49000, testMarket, "entry"},
		{"no stop distance", 1000, 50000, 50000, testMarket, "stop distance"},
		{"below min quantity", 1000, 50000, 49000,
			exchange.Market{QuantityPrecision: 5, MinQuantity: 0.5}, "minimum"},
		{"below min notional", 5, 50000, 25000,
			exchange.Market{QuantityPrecision: 8, MinNotional: 10}, "notional"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := s.Size(c.usable, c.entry, c.stop, c.mkt)
			if res.Quantity != 0 {
				t.Fatalf("expected zero quantity, got %v", res.Quantity)
			}
			if !strings.Contains(res.Reason, c.keyword) {
				t.Errorf("reason %q missing %q", res.Reason, c.keyword)
			}
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct{ in, want string }{
		{"BTCUSD", "BTC/USDT"},
		{"btcusdt", "BTC/USDT"},
		{"ETH/USDT", "ETH/USDT"},
		{"sol", "SOL/USDT"},
	}
	for _, c := range cases {
		if got := p.NormalizeSymbol(c.in); got != c.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
