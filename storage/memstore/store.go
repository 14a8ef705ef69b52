// Package memstore is an in-process blacklist store for tests, single-node
// deployments and the CLI.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	goToken "github.com/MrEthical07/goToken"
)

type record struct {
	entry     goToken.BlacklistEntry
	expiresAt time.Time
}

// Store keeps entries in a map guarded by a mutex. Expired records are
// dropped lazily on access and by Sweep.
type Store struct {
	mu      sync.Mutex
	records map[string]record
	now     func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the time source used for record expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{records: make(map[string]record), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores entry unless a live record exists under key.
func (s *Store) Put(_ context.Context, key string, entry goToken.BlacklistEntry, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if r, ok := s.records[key]; ok && !r.expired(now) {
		return false, nil
	}
	r := record{entry: entry}
	if ttl > 0 {
		r.expiresAt = now.Add(ttl)
	}
	s.records[key] = r
	return true, nil
}

// Get returns the live record under key.
func (s *Store) Get(_ context.Context, key string) (goToken.BlacklistEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok {
		return goToken.BlacklistEntry{}, false, nil
	}
	if r.expired(s.now()) {
		delete(s.records, key)
		return goToken.BlacklistEntry{}, false, nil
	}
	return r.entry, true, nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	delete(s.records, key)
	return ok && !r.expired(s.now()), nil
}

// Flush removes every record.
func (s *Store) Flush(context.Context) error {
	s.mu.Lock()
	s.records = make(map[string]record)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired records and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, r := range s.records {
		if r.expired(now) {
			delete(s.records, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, r := range s.records {
		if !r.expired(now) {
			n++
		}
	}
	return n
}

// Keys returns the live keys with the given prefix.
func (s *Store) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []string
	for k, r := range s.records {
		if !r.expired(now) && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (r record) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}
