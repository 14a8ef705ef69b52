package goToken

import (
	"sort"

	"github.com/samber/lo"
)

// ClaimFactory constructs claims, applying each claim's construction rule,
// and generates values for claims requested without one.
//
// A ClaimFactory is immutable and safe for concurrent use.
type ClaimFactory struct {
	clock Clock
	ids   IDGenerator
	opts  Options
}

// NewClaimFactory returns a factory bound to clock and ids. Nil collaborators
// fall back to SystemClock and UUIDGenerator.
func NewClaimFactory(clock Clock, ids IDGenerator, opts Options) *ClaimFactory {
	if clock == nil {
		clock = SystemClock{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &ClaimFactory{clock: clock, ids: ids, opts: opts.clone()}
}

// Claim builds a claim from an explicit value.
//
// Temporal claims must be non-negative numbers (or time.Time). iat is also
// rejected when it lies in the future beyond the configured leeway; iat equal
// to now is accepted. jti and iss must be strings.
func (f *ClaimFactory) Claim(name string, value any) (Claim, error) {
	v, ok := normalizeValue(value)
	if !ok {
		return Claim{}, invalidClaim(name)
	}

	switch name {
	case ClaimExpiration, ClaimNotBefore, ClaimIssuedAt:
		ts, ok := unixSeconds(v)
		if !ok || ts < 0 {
			return Claim{}, invalidClaim(name)
		}
		if name == ClaimIssuedAt {
			now := f.clock.Now()
			if ts > now.Add(f.opts.Leeway).Unix() {
				return Claim{}, invalidClaim(name)
			}
		}
	case ClaimJwtID, ClaimIssuer:
		if _, ok := v.(string); !ok {
			return Claim{}, invalidClaim(name)
		}
	}

	return Claim{name: name, value: v}, nil
}

// Default builds a claim with a generated value: iat and nbf are now, exp is
// now plus the TTL, jti is a fresh identifier and iss is the configured issuer.
// ok is false when the claim has no generated value, or when exp is requested
// for non-expiring tokens.
func (f *ClaimFactory) Default(name string) (Claim, bool) {
	now := f.clock.Now()
	switch name {
	case ClaimIssuedAt, ClaimNotBefore:
		return Claim{name: name, value: now.Unix()}, true
	case ClaimExpiration:
		if f.opts.TTL <= 0 {
			return Claim{}, false
		}
		return Claim{name: name, value: now.Add(f.opts.TTL).Unix()}, true
	case ClaimJwtID:
		return Claim{name: name, value: f.ids.Generate()}, true
	case ClaimIssuer:
		if f.opts.Issuer == "" {
			return Claim{}, false
		}
		return Claim{name: name, value: f.opts.Issuer}, true
	}
	return Claim{}, false
}

// FromMap rebuilds a claim set from decoded claims. Registered claims come
// first in canonical order, custom claims follow sorted by name.
func (f *ClaimFactory) FromMap(raw map[string]any) (*ClaimSet, error) {
	set := NewClaimSet()
	for _, name := range orderedNames(raw) {
		c, err := f.Claim(name, raw[name])
		if err != nil {
			return nil, err
		}
		set.Add(c)
	}
	return set, nil
}

func orderedNames(raw map[string]any) []string {
	names := make([]string, 0, len(raw))
	for _, name := range canonicalOrder {
		if _, ok := raw[name]; ok {
			names = append(names, name)
		}
	}
	custom := lo.Filter(lo.Keys(raw), func(name string, _ int) bool {
		return !isReserved(name)
	})
	sort.Strings(custom)
	return append(names, custom...)
}
