package risk

import (
	"log"
	"sync"
	"time"
)

// LedgerSnapshot is a point-in-time copy of the day's running totals.
type LedgerSnapshot struct {
	Date   string  `json:"date"`
	PnL    float64 `json:"pnl"`
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
}

// Ledger accumulates realized P&L and trade counts for the current
// calendar day and resets itself when the date changes. All state is
// in-memory; a restart starts a fresh day.
type Ledger struct {
	mu     sync.Mutex
	day    string
	pnl    float64
	trades int
	wins   int
	losses int

	loc *time.Location
	now func() time.Time
}

// NewLedger starts a ledger anchored to the given timezone.
func NewLedger(loc *time.Location) *Ledger {
	l := &Ledger{loc: loc, now: time.Now}
	l.day = l.today()
	return l
}

func (l *Ledger) today() string {
	return l.now().In(l.loc).Format("2006-01-02")
}

// rollover resets the totals when the calendar date has changed.
// Caller must hold l.mu. Returns true if a reset happened.
func (l *Ledger) rollover() bool {
	today := l.today()
	if today == l.day {
		return false
	}
	log.Printf("[LEDGER] day rollover %s -> %s (closed day pnl=%.2f trades=%d)",
		l.day, today, l.pnl, l.trades)
	l.day = today
	l.pnl = 0
	l.trades = 0
	l.wins = 0
	l.losses = 0
	return true
}

// Roll checks the day boundary without mutating totals otherwise.
func (l *Ledger) Roll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
}

// AddPnL commits a realized result and returns the new daily total.
func (l *Ledger) AddPnL(pnl float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	l.pnl += pnl
	if pnl > 0 {
		l.wins++
	} else {
		l.losses++
	}
	return l.pnl
}

// IncTrades records one opened trade.
func (l *Ledger) IncTrades() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	l.trades++
}

// PnL returns the current daily total after a boundary check.
func (l *Ledger) PnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.pnl
}

// Snapshot returns the day's totals for reporting.
func (l *Ledger) Snapshot() LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return LedgerSnapshot{
		Date:   l.day,
		PnL:    l.pnl,
		Trades: l.trades,
		Wins:   l.wins,
		Losses: l.losses,
	}
}
