package goToken

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var testNow = time.Unix(1700000000, 0)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: testNow}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqIDs struct {
	n atomic.Int64
}

func (s *seqIDs) Generate() string {
	return "id-" + strconv.FormatInt(s.n.Add(1), 10)
}

// mapStore is a minimal BlacklistStore; the real stores live under storage/.
type mapStore struct {
	mu      sync.Mutex
	entries map[string]BlacklistEntry
	ttls    map[string]time.Duration
	putErr  error
}

func newMapStore() *mapStore {
	return &mapStore{entries: map[string]BlacklistEntry{}, ttls: map[string]time.Duration{}}
}

func (s *mapStore) Put(_ context.Context, key string, e BlacklistEntry, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return false, s.putErr
	}
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.entries[key] = e
	s.ttls[key] = ttl
	return true, nil
}

func (s *mapStore) Get(_ context.Context, key string) (BlacklistEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *mapStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

func (s *mapStore) Flush(context.Context) error {
	s.mu.Lock()
	s.entries = map[string]BlacklistEntry{}
	s.mu.Unlock()
	return nil
}

// countingRevoker records how often the Manager consults the blacklist.
type countingRevoker struct {
	inner   Revoker
	has     atomic.Int64
	add     atomic.Int64
	addErr  error
	forever atomic.Int64
}

func (c *countingRevoker) Has(ctx context.Context, p *Payload) (bool, error) {
	c.has.Add(1)
	return c.inner.Has(ctx, p)
}

func (c *countingRevoker) Add(ctx context.Context, p *Payload) (bool, error) {
	c.add.Add(1)
	if c.addErr != nil {
		return false, c.addErr
	}
	return c.inner.Add(ctx, p)
}

func (c *countingRevoker) AddForever(ctx context.Context, p *Payload) error {
	c.forever.Add(1)
	return c.inner.AddForever(ctx, p)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Issuer = "example.com"
	return opts
}

func newTestBuilder(t *testing.T, clock Clock, opts Options) *PayloadBuilder {
	t.Helper()
	b, err := NewPayloadBuilder(clock, &seqIDs{}, opts)
	if err != nil {
		t.Fatalf("new payload builder: %v", err)
	}
	return b
}

func mustClaim(t *testing.T, f *ClaimFactory, name string, value any) Claim {
	t.Helper()
	c, err := f.Claim(name, value)
	if err != nil {
		t.Fatalf("claim %s: %v", name, err)
	}
	return c
}

// standardSet is {sub:1, iss:"example.com", exp:now+3600, nbf:now, iat:now, jti:"foo"}.
func standardSet(t *testing.T, f *ClaimFactory, now time.Time) *ClaimSet {
	t.Helper()
	return NewClaimSet(
		mustClaim(t, f, ClaimSubject, 1),
		mustClaim(t, f, ClaimIssuer, "example.com"),
		mustClaim(t, f, ClaimExpiration, now.Add(time.Hour).Unix()),
		mustClaim(t, f, ClaimNotBefore, now.Unix()),
		mustClaim(t, f, ClaimIssuedAt, now.Unix()),
		mustClaim(t, f, ClaimJwtID, "foo"),
	)
}
