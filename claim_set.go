package goToken

import (
	"github.com/samber/lo"
)

// ClaimSet is an ordered collection of claims, unique by name. Insertion
// order is kept so serialization is deterministic.
type ClaimSet struct {
	names  []string
	claims map[string]Claim
}

// NewClaimSet returns a set holding claims in the given order. A later claim
// replaces an earlier one with the same name.
func NewClaimSet(claims ...Claim) *ClaimSet {
	s := &ClaimSet{claims: make(map[string]Claim, len(claims))}
	for _, c := range claims {
		s.Add(c)
	}
	return s
}

// Add inserts c. When a claim with the same name exists its value is replaced
// and its position is kept.
func (s *ClaimSet) Add(c Claim) {
	if s.claims == nil {
		s.claims = make(map[string]Claim)
	}
	if _, ok := s.claims[c.name]; !ok {
		s.names = append(s.names, c.name)
	}
	s.claims[c.name] = c
}

// Get returns the claim with the given name.
func (s *ClaimSet) Get(name string) (Claim, bool) {
	c, ok := s.claims[name]
	return c, ok
}

// Has reports whether a claim with the given name is present.
func (s *ClaimSet) Has(name string) bool {
	_, ok := s.claims[name]
	return ok
}

// HasAll reports whether every name is present.
func (s *ClaimSet) HasAll(names []string) bool {
	return lo.EveryBy(names, s.Has)
}

// Names returns the claim names in insertion order.
func (s *ClaimSet) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of claims.
func (s *ClaimSet) Len() int {
	return len(s.names)
}

// Verify runs each claim's verify-time rule in insertion order and returns
// the first failure.
func (s *ClaimSet) Verify(rules VerifyRules) error {
	for _, name := range s.names {
		if err := s.claims[name].Verify(rules); err != nil {
			return err
		}
	}
	return nil
}

// ToMap returns the claims as a fresh name to value map.
func (s *ClaimSet) ToMap() map[string]any {
	out := make(map[string]any, len(s.names))
	for _, name := range s.names {
		out[name] = s.claims[name].value
	}
	return out
}

func (s *ClaimSet) clone() *ClaimSet {
	out := &ClaimSet{
		names:  append([]string(nil), s.names...),
		claims: make(map[string]Claim, len(s.claims)),
	}
	for k, v := range s.claims {
		out.claims[k] = Claim{name: v.name, value: copyValue(v.value)}
	}
	return out
}
