package server

import (
	"sync"
	"time"

	"github.com/chazu/pl0c/compiler"
	"github.com/google/uuid"
)

// unit is a compiled program kept for later runs.
type unit struct {
	id       string
	result   *compiler.Result
	created  time.Time
	lastUsed time.Time
}

// UnitStore maps opaque unit IDs to compiled programs.
type UnitStore struct {
	mu    sync.Mutex
	units map[string]*unit
}

// NewUnitStore creates an empty unit store.
func NewUnitStore() *UnitStore {
	return &UnitStore{units: make(map[string]*unit)}
}

// Create registers a compiled program and returns its unit ID.
func (s *UnitStore) Create(res *compiler.Result) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.units[id] = &unit{
		id:       id,
		result:   res,
		created:  now,
		lastUsed: now,
	}
	return id
}

// Lookup retrieves the program for a unit ID.
func (s *UnitStore) Lookup(id string) (*compiler.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.units[id]
	if !ok {
		return nil, false
	}
	u.lastUsed = time.Now()
	return u.result, true
}

// Release removes a unit. It reports whether the unit existed.
func (s *UnitStore) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.units[id]
	delete(s.units, id)
	return ok
}

// Len returns the number of stored units.
func (s *UnitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}

// Sweep removes units that haven't been used within the TTL.
func (s *UnitStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for id, u := range s.units {
		if u.lastUsed.Before(cutoff) {
			delete(s.units, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *UnitStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(ttl); n > 0 {
					log.Debugf("swept %d idle units", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
