package order

import (
	"sort"
	"sync"
)

// Store is the in-memory book of live orders. A single mutex guards
// every access; all reads hand out copies so callers never hold a
// reference into the map.
type Store struct {
	mu     sync.Mutex
	orders map[string]Order
}

func NewStore() *Store {
	return &Store{orders: make(map[string]Order)}
}

// Insert adds a new order. Returns false if the id is already tracked.
func (s *Store) Insert(o Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return false
	}
	s.orders[o.ID] = o
	return true
}

// Get returns a copy of the order and whether it exists.
func (s *Store) Get(id string) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// Transition flips an order's status only if it currently matches from.
// The compare-and-update keeps the monitor and close_all from acting on
// the same order twice.
func (s *Store) Transition(id string, from, to Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false
	}
	o.Status = to
	s.orders[id] = o
	return true
}

// SetFill records the confirmed filled quantity.
func (s *Store) SetFill(id string, filled float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.FilledQty = filled
		s.orders[id] = o
	}
}

// Remove drops the order from the book.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
}

// Len reports how many orders are tracked.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Snapshot returns copies of all tracked orders, oldest first.
func (s *Store) Snapshot() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
