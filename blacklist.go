package goToken

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BlacklistEntry is the stored record of an invalidated token. Times are unix
// seconds. PurgeAt zero marks an entry that never expires.
type BlacklistEntry struct {
	ValidUntil int64 `json:"valid_until"`
	PurgeAt    int64 `json:"purge_at,omitempty"`
}

// Forever reports whether the entry never expires.
func (e BlacklistEntry) Forever() bool {
	return e.PurgeAt == 0
}

// BlacklistStore persists blacklist entries. Implementations own atomicity:
// Put must insert only when no live entry exists under key.
type BlacklistStore interface {
	// Put stores entry under key unless a live entry exists. ttl zero means no
	// expiry. It reports whether the entry was written.
	Put(ctx context.Context, key string, entry BlacklistEntry, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (BlacklistEntry, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	// Flush removes every entry owned by the store.
	Flush(ctx context.Context) error
}

// BlacklistConfig configures a Blacklist.
type BlacklistConfig struct {
	// GracePeriod delays the effect of an invalidation; see
	// Options.BlacklistGracePeriod for the trade-off.
	GracePeriod time.Duration
	// Leeway and RefreshWindow extend an entry's lifetime to cover every
	// moment the token could still be accepted or refreshed.
	Leeway        time.Duration
	RefreshWindow time.Duration
	// KeyClaim identifies a token. Defaults to jti; payloads without it are
	// keyed by a hash of all their claims.
	KeyClaim string
	Clock    Clock
}

// Blacklist is the revocation list of invalidated tokens.
//
// A Blacklist holds no mutable state of its own and is safe for concurrent
// use when its store is.
type Blacklist struct {
	store    BlacklistStore
	grace    time.Duration
	leeway   time.Duration
	window   time.Duration
	keyClaim string
	clock    Clock
}

// NewBlacklist returns a Blacklist over store.
func NewBlacklist(store BlacklistStore, cfg BlacklistConfig) (*Blacklist, error) {
	if store == nil {
		return nil, errors.New("blacklist store is nil")
	}
	if cfg.GracePeriod < 0 || cfg.Leeway < 0 || cfg.RefreshWindow < 0 {
		return nil, errors.New("blacklist durations must not be negative")
	}
	if cfg.KeyClaim == "" {
		cfg.KeyClaim = ClaimJwtID
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	return &Blacklist{
		store:    store,
		grace:    cfg.GracePeriod,
		leeway:   cfg.Leeway,
		window:   cfg.RefreshWindow,
		keyClaim: cfg.KeyClaim,
		clock:    cfg.Clock,
	}, nil
}

// Add invalidates p. The entry takes effect once the grace period has passed
// and lives until the token could no longer be accepted or refreshed. A
// payload without exp is invalidated forever.
//
// Add reports whether this call listed p. It is false when an entry already
// existed, which a refresh treats as the token having been consumed.
func (b *Blacklist) Add(ctx context.Context, p *Payload) (bool, error) {
	exp, ok := p.ExpiresAt()
	if !ok {
		return b.putForever(ctx, p)
	}

	now := b.clock.Now()
	purge := exp.Add(b.leeway)
	if iat, ok := p.IssuedAt(); ok && b.window > 0 {
		if refreshEnd := iat.Add(b.window); refreshEnd.After(purge) {
			purge = refreshEnd
		}
	}
	purge = purge.Add(b.grace)

	ttl := purge.Sub(now)
	if ttl <= 0 {
		// Already past every acceptance window; nothing left to guard.
		return true, nil
	}
	entry := BlacklistEntry{
		ValidUntil: now.Add(b.grace).Unix(),
		PurgeAt:    purge.Unix(),
	}
	written, err := b.store.Put(ctx, b.Key(p), entry, ttl)
	if err != nil {
		return false, fmt.Errorf("blacklist add: %w", err)
	}
	return written, nil
}

// AddForever invalidates p with no expiry and no grace period. An existing
// expiring entry is replaced.
func (b *Blacklist) AddForever(ctx context.Context, p *Payload) error {
	key := b.Key(p)
	for range 2 {
		written, err := b.putForever(ctx, p)
		if err != nil || written {
			return err
		}
		entry, ok, err := b.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("blacklist add forever: %w", err)
		}
		if ok && entry.Forever() {
			return nil
		}
		if _, err := b.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("blacklist add forever: %w", err)
		}
	}
	return fmt.Errorf("blacklist add forever: entry for %q keeps being replaced", key)
}

func (b *Blacklist) putForever(ctx context.Context, p *Payload) (bool, error) {
	written, err := b.store.Put(ctx, b.Key(p), BlacklistEntry{}, 0)
	if err != nil {
		return false, fmt.Errorf("blacklist add forever: %w", err)
	}
	return written, nil
}

// Has reports whether p is blacklisted: an entry exists, has not passed its
// purge time, and its grace period is over.
func (b *Blacklist) Has(ctx context.Context, p *Payload) (bool, error) {
	entry, ok, err := b.store.Get(ctx, b.Key(p))
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	if !ok {
		return false, nil
	}
	if entry.Forever() {
		return true, nil
	}
	now := b.clock.Now().Unix()
	if entry.PurgeAt <= now {
		return false, nil
	}
	return now >= entry.ValidUntil, nil
}

// Remove deletes p from the blacklist and reports whether it was listed.
func (b *Blacklist) Remove(ctx context.Context, p *Payload) (bool, error) {
	ok, err := b.store.Delete(ctx, b.Key(p))
	if err != nil {
		return false, fmt.Errorf("blacklist remove: %w", err)
	}
	return ok, nil
}

// Clear removes every entry.
func (b *Blacklist) Clear(ctx context.Context) error {
	if err := b.store.Flush(ctx); err != nil {
		return fmt.Errorf("blacklist clear: %w", err)
	}
	return nil
}

// Key returns the identity p is stored under.
func (b *Blacklist) Key(p *Payload) string {
	if v, ok := p.Lookup(b.keyClaim); ok && v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
		if _, ok := v.(string); !ok {
			return fmt.Sprint(v)
		}
	}
	return "h:" + payloadFingerprint(p.ToMap())
}

// GracePeriod returns the configured grace period.
func (b *Blacklist) GracePeriod() time.Duration {
	return b.grace
}
