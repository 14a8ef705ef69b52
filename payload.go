package goToken

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is a verified, immutable claim set. The only way to obtain one is
// through a PayloadValidator, so holding a Payload means every required claim
// was present and every claim passed verification.
type Payload struct {
	set *ClaimSet
}

var emptyClaims = NewClaimSet()

// claims returns the underlying set. A zero or nil Payload reads as empty.
func (p *Payload) claims() *ClaimSet {
	if p == nil || p.set == nil {
		return emptyClaims
	}
	return p.set
}

// Get returns the value of the named claim, or nil when absent.
func (p *Payload) Get(name string) any {
	v, _ := p.Lookup(name)
	return v
}

// Lookup returns a copy of the value of the named claim.
func (p *Payload) Lookup(name string) (any, bool) {
	c, ok := p.claims().Get(name)
	if !ok {
		return nil, false
	}
	return copyValue(c.value), true
}

// Has reports whether the named claim is present.
func (p *Payload) Has(name string) bool {
	return p.claims().Has(name)
}

// Claim returns the named claim.
func (p *Payload) Claim(name string) (Claim, bool) {
	c, ok := p.claims().Get(name)
	if !ok {
		return Claim{}, false
	}
	c.value = copyValue(c.value)
	return c, true
}

// At returns the i-th claim in insertion order.
func (p *Payload) At(i int) (Claim, bool) {
	if i < 0 || i >= len(p.claims().names) {
		return Claim{}, false
	}
	return p.Claim(p.claims().names[i])
}

// Len returns the number of claims.
func (p *Payload) Len() int { return p.claims().Len() }

// Names returns the claim names in insertion order.
func (p *Payload) Names() []string { return p.claims().Names() }

// ToMap returns a deep copy of the claims keyed by name.
func (p *Payload) ToMap() map[string]any {
	out := make(map[string]any, p.claims().Len())
	for _, name := range p.claims().names {
		out[name] = copyValue(p.claims().claims[name].value)
	}
	return out
}

// ClaimSet returns a copy of the underlying claim set.
func (p *Payload) ClaimSet() *ClaimSet {
	return p.claims().clone()
}

// Matches reports whether every given claim is present with an equal value.
// Expected values are normalized first, so 1 and int64(1) compare equal.
func (p *Payload) Matches(values map[string]any) bool {
	for name, want := range values {
		c, ok := p.claims().Get(name)
		if !ok {
			return false
		}
		nv, ok := normalizeValue(want)
		if !ok || !valuesEqual(c.value, nv) {
			return false
		}
	}
	return true
}

// MatchesStrict is Matches without normalizing the expected values.
func (p *Payload) MatchesStrict(values map[string]any) bool {
	for name, want := range values {
		c, ok := p.claims().Get(name)
		if !ok || !valuesEqual(c.value, want) {
			return false
		}
	}
	return true
}

// Subject returns sub formatted as a string, or "" when absent.
func (p *Payload) Subject() string {
	return p.stringClaim(ClaimSubject)
}

// JwtID returns jti, or "" when absent.
func (p *Payload) JwtID() string {
	return p.stringClaim(ClaimJwtID)
}

// Issuer returns iss, or "" when absent.
func (p *Payload) Issuer() string {
	return p.stringClaim(ClaimIssuer)
}

// ExpiresAt returns exp.
func (p *Payload) ExpiresAt() (time.Time, bool) {
	return p.timeClaim(ClaimExpiration)
}

// IssuedAt returns iat.
func (p *Payload) IssuedAt() (time.Time, bool) {
	return p.timeClaim(ClaimIssuedAt)
}

func (p *Payload) stringClaim(name string) string {
	c, ok := p.claims().Get(name)
	if !ok || c.value == nil {
		return ""
	}
	if s, ok := c.value.(string); ok {
		return s
	}
	return fmt.Sprint(c.value)
}

func (p *Payload) timeClaim(name string) (time.Time, bool) {
	c, ok := p.claims().Get(name)
	if !ok {
		return time.Time{}, false
	}
	return c.Time()
}

// MarshalJSON encodes the claims as an object in insertion order.
func (p *Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.claims().names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.claims().claims[name].value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the JSON form of the payload.
func (p *Payload) String() string {
	raw, err := p.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func copyValue(v any) any {
	switch n := v.(type) {
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = copyValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			out[k] = copyValue(item)
		}
		return out
	}
	return v
}
