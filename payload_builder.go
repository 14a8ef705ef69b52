package goToken

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Subject is an entity tokens can be issued for.
type Subject interface {
	// JWTIdentifier returns the value stored in the sub claim.
	JWTIdentifier() any
	// JWTCustomClaims returns extra claims added to every token of the subject.
	JWTCustomClaims() map[string]any
}

// defaultClaims are generated for every new payload unless supplied.
var defaultClaims = []string{
	ClaimIssuer,
	ClaimIssuedAt,
	ClaimExpiration,
	ClaimNotBefore,
	ClaimJwtID,
}

// refreshedClaims are regenerated by a refresh; everything else carries over.
var refreshedClaims = map[string]struct{}{
	ClaimIssuedAt:   {},
	ClaimExpiration: {},
	ClaimNotBefore:  {},
	ClaimJwtID:      {},
}

// PayloadBuilder assembles payloads for new and refreshed tokens and rebuilds
// payloads from decoded claims.
type PayloadBuilder struct {
	factory   *ClaimFactory
	validator *PayloadValidator
	opts      Options
}

// NewPayloadBuilder wires a claim factory and a validator sharing clock and opts.
func NewPayloadBuilder(clock Clock, ids IDGenerator, opts Options) (*PayloadBuilder, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &PayloadBuilder{
		factory:   NewClaimFactory(clock, ids, opts),
		validator: NewPayloadValidator(clock, opts),
		opts:      opts.clone(),
	}, nil
}

// Options returns a copy of the builder's options.
func (b *PayloadBuilder) Options() Options {
	return b.opts.clone()
}

// Factory returns the claim factory.
func (b *PayloadBuilder) Factory() *ClaimFactory {
	return b.factory
}

// Make builds and validates a payload from the default claims overlaid with
// claims. Explicit values for default claims replace the generated ones.
func (b *PayloadBuilder) Make(claims map[string]any) (*Payload, error) {
	set := NewClaimSet()
	for _, name := range defaultClaims {
		if v, ok := claims[name]; ok {
			c, err := b.factory.Claim(name, v)
			if err != nil {
				return nil, err
			}
			set.Add(c)
			continue
		}
		if c, ok := b.factory.Default(name); ok {
			set.Add(c)
		}
	}
	for _, name := range orderedNames(claims) {
		if set.Has(name) {
			continue
		}
		c, err := b.factory.Claim(name, claims[name])
		if err != nil {
			return nil, err
		}
		set.Add(c)
	}
	return b.validator.Check(set)
}

// MakeForSubject builds a payload for sub. Subject custom claims are applied
// first, then claims.
func (b *PayloadBuilder) MakeForSubject(sub Subject, claims map[string]any) (*Payload, error) {
	merged := make(map[string]any)
	for k, v := range sub.JWTCustomClaims() {
		merged[k] = v
	}
	for k, v := range claims {
		merged[k] = v
	}
	merged[ClaimSubject] = sub.JWTIdentifier()
	if b.opts.LockSubject {
		merged[ClaimSubjectLock] = SubjectFingerprint(sub)
	}
	return b.Make(merged)
}

// BuildRefreshClaims returns the claims of p that carry over to a refreshed
// token. iat, exp, nbf and jti are dropped so Make issues fresh values.
func (b *PayloadBuilder) BuildRefreshClaims(p *Payload) map[string]any {
	out := p.ToMap()
	for name := range refreshedClaims {
		delete(out, name)
	}
	return out
}

// Decode rebuilds a payload from decoded claims. refreshFlow relaxes exp when
// a max refresh period is configured.
func (b *PayloadBuilder) Decode(raw map[string]any, refreshFlow bool) (*Payload, error) {
	set, err := b.factory.FromMap(raw)
	if err != nil {
		return nil, err
	}
	if refreshFlow {
		return b.validator.CheckRefresh(set)
	}
	return b.validator.Check(set)
}

// MatchesSubject reports whether p was issued for sub, honouring subject
// locking when it is enabled.
func (b *PayloadBuilder) MatchesSubject(p *Payload, sub Subject) bool {
	if !p.Matches(map[string]any{ClaimSubject: sub.JWTIdentifier()}) {
		return false
	}
	if !b.opts.LockSubject {
		return true
	}
	return p.Get(ClaimSubjectLock) == SubjectFingerprint(sub)
}

// SubjectFingerprint identifies the Go type of sub.
func SubjectFingerprint(sub Subject) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%T", sub)))
	return hex.EncodeToString(sum[:20])
}

// payloadFingerprint hashes the claims in sorted key order. Nested maps are
// key-sorted by encoding/json, so equal claim sets hash equally.
func payloadFingerprint(claims map[string]any) string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h, _ := blake2b.New256(nil)
	for _, k := range keys {
		raw, err := json.Marshal(claims[k])
		if err != nil {
			raw = []byte(fmt.Sprint(claims[k]))
		}
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write(raw)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
