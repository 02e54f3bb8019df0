package risk

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML strings like "30m" or "5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Policy is the operator-tunable risk policy, loaded from YAML at startup.
type Policy struct {
	TradingEnabled bool `yaml:"trading_enabled"`

	// Sizing.
	RiskPerTradePct float64 `yaml:"risk_per_trade_pct"` // fraction of usable balance, e.g. 0.01
	MaxRiskAbsolute float64 `yaml:"max_risk_absolute"`  // hard cap on risk amount, quote units
	MaxNotional     float64 `yaml:"max_notional"`       // hard cap on position value, quote units
	CapitalUsePct   float64 `yaml:"capital_use_pct"`    // ceiling on notional as fraction of usable
	MinReserve      float64 `yaml:"min_reserve"`        // quote units kept untouched

	// Exposure.
	MaxOpenPositions int     `yaml:"max_open_positions"`
	MaxDailyLoss     float64 `yaml:"max_daily_loss"` // quote units, positive number

	// Defaults applied when a signal omits its own levels.
	DefaultStopLossPct   float64 `yaml:"default_stop_loss_pct"`
	DefaultTakeProfitPct float64 `yaml:"default_take_profit_pct"`
	SlippagePct          float64 `yaml:"slippage_pct"` // 0 disables limit-price padding

	// Lifecycle.
	OrderTimeout    Duration `yaml:"order_timeout"`
	MonitorInterval Duration `yaml:"monitor_interval"`

	// Universe.
	AllowedSymbols []string          `yaml:"allowed_symbols"`
	SymbolAliases  map[string]string `yaml:"symbol_aliases"`

	// Trading hours. Empty RestrictedHours means trade around the clock.
	RestrictedHours []HourRange `yaml:"restricted_hours"`
	Timezone        string      `yaml:"timezone"`
}

// HourRange is an inclusive start, exclusive end window in local hours.
// Start > End means the window wraps past midnight.
type HourRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// DefaultPolicy returns conservative defaults matching a small live account.
func DefaultPolicy() Policy {
	return Policy{
		TradingEnabled:       true,
		RiskPerTradePct:      0.01,
		MaxRiskAbsolute:      100,
		MaxNotional:          5000,
		CapitalUsePct:        0.8,
		MinReserve:           10,
		MaxOpenPositions:     3,
		MaxDailyLoss:         50,
		DefaultStopLossPct:   0.02,
		DefaultTakeProfitPct: 0.04,
		SlippagePct:          0,
		OrderTimeout:         Duration(30 * time.Minute),
		MonitorInterval:      Duration(5 * time.Second),
		AllowedSymbols:       []string{"BTC/USDT", "ETH/USDT"},
		SymbolAliases: map[string]string{
			"BTCUSD":  "BTC/USDT",
			"BTCUSDT": "BTC/USDT",
			"ETHUSD":  "ETH/USDT",
			"ETHUSDT": "ETH/USDT",
		},
		Timezone: "UTC",
	}
}

// LoadPolicy reads a YAML policy file over the defaults. A missing file
// is not an error; the defaults stand.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate rejects values that would make the gate or sizer misbehave.
func (p Policy) Validate() error {
	if p.RiskPerTradePct <= 0 || p.RiskPerTradePct > 0.1 {
		return fmt.Errorf("risk_per_trade_pct %v outside (0, 0.1]", p.RiskPerTradePct)
	}
	if p.CapitalUsePct <= 0 || p.CapitalUsePct > 1 {
		return fmt.Errorf("capital_use_pct %v outside (0, 1]", p.CapitalUsePct)
	}
	if p.MaxDailyLoss < 0 {
		return fmt.Errorf("max_daily_loss %v must be >= 0", p.MaxDailyLoss)
	}
	if p.MaxOpenPositions < 1 {
		return fmt.Errorf("max_open_positions %d must be >= 1", p.MaxOpenPositions)
	}
	if p.DefaultStopLossPct <= 0 || p.DefaultStopLossPct >= 1 {
		return fmt.Errorf("default_stop_loss_pct %v outside (0, 1)", p.DefaultStopLossPct)
	}
	for _, h := range p.RestrictedHours {
		if h.Start < 0 || h.Start > 23 || h.End < 0 || h.End > 24 {
			return fmt.Errorf("restricted hour range %d-%d out of bounds", h.Start, h.End)
		}
	}
	return nil
}

// Location resolves the policy timezone, falling back to UTC.
func (p Policy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NormalizeSymbol maps incoming signal symbols onto the venue universe:
// aliases first, then uppercase, then the implied /USDT quote.
func (p Policy) NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if alias, ok := p.SymbolAliases[s]; ok {
		return alias
	}
	if !strings.Contains(s, "/") {
		return s + "/USDT"
	}
	return s
}

// SymbolAllowed reports whether the normalized symbol is tradable.
func (p Policy) SymbolAllowed(symbol string) bool {
	for _, s := range p.AllowedSymbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// InRestrictedHours reports whether t falls inside any restricted window.
func (p Policy) InRestrictedHours(t time.Time) bool {
	hour := t.In(p.Location()).Hour()
	for _, h := range p.RestrictedHours {
		if h.Start == h.End {
			continue
		}
		if h.Start < h.End {
			if hour >= h.Start && hour < h.End {
				return true
			}
		} else if hour >= h.Start || hour < h.End {
			return true
		}
	}
	return false
}
