package order

import (
	"math"
	"sync"
	"testing"
	"time"

	"webhook-trader/internal/exchange"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func sample(id string) Order {
	return Order{
		ID:         id,
		Symbol:     "BTC/USDT",
		Side:       exchange.SideBuy,
		Quantity:   0.01,
		FilledQty:  0.01,
		EntryPrice: 50000,
		StopLoss:   49000,
		TakeProfit: 52000,
		Status:     StatusOpen,
		CreatedAt:  time.Now(),
	}
}

func TestStoreInsertAndDuplicate(t *testing.T) {
	s := NewStore()
	if !s.Insert(sample("a")) {
		t.Fatal("first insert should succeed")
	}
	if s.Insert(sample("a")) {
		t.Fatal("duplicate insert should fail")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

func TestStoreTransitionCompareAndUpdate(t *testing.T) {
	s := NewStore()
	s.Insert(sample("a"))

	if !s.Transition("a", StatusOpen, StatusFilled) {
		t.Fatal("open->filled should succeed")
	}
	if s.Transition("a", StatusOpen, StatusFilled) {
		t.Fatal("second open->filled should fail, status already moved")
	}
	o, _ := s.Get("a")
	if o.Status != StatusFilled {
		t.Errorf("status = %s, want filled", o.Status)
	}
	if s.Transition("missing", StatusOpen, StatusFilled) {
		t.Fatal("unknown id should fail")
	}
}

func TestStoreTransitionRace(t *testing.T) {
	s := NewStore()
	s.Insert(sample("a"))

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Transition("a", StatusFilled, StatusClosed) || s.Transition("a", StatusOpen, StatusClosed) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("exactly one goroutine should win the transition, got %d", wins)
	}
}

func TestStoreSnapshotOrdering(t *testing.T) {
	s := NewStore()
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		o := sample(id)
		o.CreatedAt = base.Add(time.Duration(i) * time.Second)
		s.Insert(o)
	}
	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	if snap[0].ID != "c" || snap[2].ID != "b" {
		t.Errorf("snapshot not oldest-first: %s, %s, %s", snap[0].ID, snap[1].ID, snap[2].ID)
	}
}

func TestOrderPnLSideSigned(t *testing.T) {
	long := sample("l")
	if got := long.PnL(49000); !near(got, -10) {
		t.Errorf("long pnl = %v, want -10", got)
	}
	if got := long.PnL(52000); !near(got, 20) {
		t.Errorf("long pnl = %v, want 20", got)
	}

	short := sample("s")
	short.Side = exchange.SideSell
	if got := short.PnL(49000); !near(got, 10) {
		t.Errorf("short pnl = %v, want 10", got)
	}
}

func TestStoreRemove(t *testing.T) {
	s := NewStore()
	s.Insert(sample("a"))
	s.Remove("a")
	if s.Len() != 0 {
		t.Fatal("remove left the order behind")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("get after remove should miss")
	}
}
