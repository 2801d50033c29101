package engine

import (
	"sync"
	"time"
)

// StoreConfig controls retention of the in-memory alert state.
type StoreConfig struct {
	DedupRetention time.Duration // how long seen trade IDs are remembered
	PositionTTL    time.Duration // how long unmatched positions are kept
}

// DefaultStoreConfig returns the standard retention windows.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DedupRetention: 24 * time.Hour,
		PositionTTL:    7 * 24 * time.Hour,
	}
}

type positionKey struct {
	wallet   string
	marketID string
	outcome  string
}

// Store is the in-memory alert state: the trade-ID dedup set and the open
// positions awaiting a cashout. All operations are serialized behind a
// single mutex so readers always observe a consistent view.
type Store struct {
	cfg StoreConfig

	mu        sync.Mutex
	seen      map[string]time.Time
	positions map[positionKey]Position
}

// NewStore creates a store, applying defaults for zero config values.
func NewStore(cfg StoreConfig) *Store {
	if cfg.DedupRetention <= 0 {
		cfg.DedupRetention = 24 * time.Hour
	}
	if cfg.PositionTTL <= 0 {
		cfg.PositionTTL = 7 * 24 * time.Hour
	}
	return &Store{
		cfg:       cfg,
		seen:      make(map[string]time.Time),
		positions: make(map[positionKey]Position),
	}
}

// RecordIfNew marks a trade ID as seen. It returns true exactly once per ID
// within the retention window; duplicates return false with no state change.
func (s *Store) RecordIfNew(tradeID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[tradeID]; ok {
		return false
	}
	s.seen[tradeID] = now
	return true
}

// OpenPosition records the entry leg of an alerted buy. A repeat alert on
// the same (wallet, market, outcome) overwrites the previous entry.
func (s *Store) OpenPosition(p Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[positionKey{p.Wallet, p.MarketID, p.Outcome}] = p
}

// TakePosition removes and returns the position for the key, if present.
// The removal makes cashout matching one-shot.
func (s *Store) TakePosition(wallet, marketID, outcome string) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey{wallet, marketID, outcome}
	p, ok := s.positions[key]
	if !ok {
		return Position{}, false
	}
	delete(s.positions, key)
	return p, true
}

// Prune drops dedup entries past the retention window and positions past
// their TTL. Returns the number removed from each map.
func (s *Store) Prune(now time.Time) (seenRemoved, positionsRemoved int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, seenAt := range s.seen {
		if now.Sub(seenAt) > s.cfg.DedupRetention {
			delete(s.seen, id)
			seenRemoved++
		}
	}
	for key, p := range s.positions {
		if now.Sub(p.OpenedAt) > s.cfg.PositionTTL {
			delete(s.positions, key)
			positionsRemoved++
		}
	}
	return seenRemoved, positionsRemoved
}

// SeenCount returns the current size of the dedup set.
func (s *Store) SeenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// OpenPositionCount returns the number of positions awaiting a cashout.
func (s *Store) OpenPositionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}
