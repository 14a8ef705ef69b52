package goToken

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"time"
)

// Registered claim names.
const (
	ClaimIssuer     = "iss"
	ClaimSubject    = "sub"
	ClaimAudience   = "aud"
	ClaimExpiration = "exp"
	ClaimNotBefore  = "nbf"
	ClaimIssuedAt   = "iat"
	ClaimJwtID      = "jti"
	// ClaimSubjectLock carries a fingerprint of the subject's type when subject locking is on.
	ClaimSubjectLock = "prv"
)

// canonicalOrder is the order registered claims take when a claim set is
// rebuilt from an unordered map. Custom claims follow, sorted by name.
var canonicalOrder = []string{
	ClaimIssuer,
	ClaimSubject,
	ClaimAudience,
	ClaimIssuedAt,
	ClaimExpiration,
	ClaimNotBefore,
	ClaimJwtID,
	ClaimSubjectLock,
}

// Claim is a single named fact inside a token. Claims are values: the name is
// fixed and the value is normalized once, at construction.
type Claim struct {
	name  string
	value any
}

// Name returns the claim name.
func (c Claim) Name() string { return c.name }

// Value returns the normalized claim value. Integral numbers are int64.
func (c Claim) Value() any { return c.value }

// IsTemporal reports whether the claim is one of exp, nbf or iat.
func (c Claim) IsTemporal() bool {
	return isTemporal(c.name)
}

// Time returns a temporal claim's value as a time.
func (c Claim) Time() (time.Time, bool) {
	ts, ok := unixSeconds(c.value)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ts, 0), true
}

// VerifyRules is the context temporal claims are checked against.
type VerifyRules struct {
	Now              time.Time
	Leeway           time.Duration
	MaxRefreshPeriod time.Duration
	// RefreshFlow skips the exp rule when a max refresh period bounds the
	// refresh window instead.
	RefreshFlow bool
}

// Verify applies the claim's verify-time rule.
func (c Claim) Verify(rules VerifyRules) error {
	switch c.name {
	case ClaimExpiration:
		if rules.RefreshFlow && rules.MaxRefreshPeriod > 0 {
			return nil
		}
		exp, _ := c.Time()
		if !rules.Now.Before(exp.Add(rules.Leeway)) {
			return newError(KindTokenExpired, "Token has expired")
		}
	case ClaimNotBefore:
		nbf, _ := c.Time()
		if rules.Now.Add(rules.Leeway).Before(nbf) {
			return newError(KindTokenInvalid, "Not Before (nbf) timestamp cannot be in the future")
		}
	case ClaimIssuedAt:
		iat, _ := c.Time()
		if iat.After(rules.Now.Add(rules.Leeway)) {
			return newError(KindTokenInvalid, "Issued At (iat) timestamp cannot be in the future")
		}
		if rules.MaxRefreshPeriod > 0 && iat.Add(rules.MaxRefreshPeriod).Before(rules.Now) {
			return newError(KindTokenExpired, "Token has expired")
		}
	}
	return nil
}

func isTemporal(name string) bool {
	return name == ClaimExpiration || name == ClaimNotBefore || name == ClaimIssuedAt
}

func isReserved(name string) bool {
	for _, n := range canonicalOrder {
		if n == name {
			return true
		}
	}
	return false
}

// unixSeconds reads a normalized numeric value as whole seconds.
func unixSeconds(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// normalizeValue converts v into the shape it has after a JSON round trip, so
// a decoded claim compares equal to the one that was encoded.
func normalizeValue(v any) (any, bool) {
	switch n := v.(type) {
	case nil, bool, string, int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return float64(n), true
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return float64(n), true
		}
		return int64(n), true
	case float32:
		return normalizeFloat(float64(n))
	case float64:
		return normalizeFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return nil, false
		}
		return normalizeFloat(f)
	case time.Time:
		return n.Unix(), true
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			nv, ok := normalizeValue(item)
			if !ok {
				return nil, false
			}
			out[i] = nv
		}
		return out, true
	case []string:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = item
		}
		return out, true
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			nv, ok := normalizeValue(item)
			if !ok {
				return nil, false
			}
			out[k] = nv
		}
		return out, true
	}

	// Structs and other JSON-representable values take the wire shape.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var generic any
	if err := decodeJSON(raw, &generic); err != nil {
		return nil, false
	}
	return normalizeValue(generic)
}

func normalizeFloat(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f), true
	}
	return f, true
}

func decodeJSON(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
