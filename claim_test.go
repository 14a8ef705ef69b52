package goToken

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestClaimConstructionRules(t *testing.T) {
	clock := newManualClock()
	f := NewClaimFactory(clock, nil, testOptions())
	now := clock.Now()

	cases := []struct {
		name  string
		claim string
		value any
		ok    bool
	}{
		{"exp numeric", ClaimExpiration, now.Unix() + 10, true},
		{"exp json number", ClaimExpiration, json.Number("1700003600"), true},
		{"exp time", ClaimExpiration, now.Add(time.Hour), true},
		{"exp string", ClaimExpiration, "tomorrow", false},
		{"nbf negative", ClaimNotBefore, -1, false},
		{"iat now", ClaimIssuedAt, now.Unix(), true},
		{"iat past", ClaimIssuedAt, now.Unix() - 60, true},
		{"iat future", ClaimIssuedAt, now.Unix() + 1, false},
		{"jti string", ClaimJwtID, "foo", true},
		{"jti number", ClaimJwtID, 42, false},
		{"iss number", ClaimIssuer, 1, false},
		{"sub number", ClaimSubject, 1, true},
		{"custom map", "roles", map[string]any{"admin": true}, true},
		{"custom channel", "bad", make(chan int), false},
	}
	for _, tc := range cases {
		_, err := f.Claim(tc.claim, tc.value)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			if !errors.Is(err, ErrInvalidClaim) {
				t.Fatalf("%s: expected ErrInvalidClaim, got %v", tc.name, err)
			}
			if !errors.Is(err, ErrJWT) {
				t.Fatalf("%s: expected invalid claim to be a JWT error", tc.name)
			}
		}
	}
}

func TestIssuedAtFutureMessage(t *testing.T) {
	clock := newManualClock()
	f := NewClaimFactory(clock, nil, testOptions())
	_, err := f.Claim(ClaimIssuedAt, clock.Now().Unix()+3600)
	if err == nil || err.Error() != "Invalid value provided for claim [iat]" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestIssuedAtLeewayOnConstruction(t *testing.T) {
	clock := newManualClock()
	opts := testOptions()
	opts.Leeway = 30 * time.Second
	f := NewClaimFactory(clock, nil, opts)
	if _, err := f.Claim(ClaimIssuedAt, clock.Now().Unix()+20); err != nil {
		t.Fatalf("expected iat within leeway to be accepted: %v", err)
	}
}

func TestNormalizedValues(t *testing.T) {
	f := NewClaimFactory(newManualClock(), nil, testOptions())

	type profile struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	cases := []struct {
		in   any
		want any
	}{
		{1, int64(1)},
		{uint16(7), int64(7)},
		{float64(3), int64(3)},
		{1.5, 1.5},
		{json.Number("12"), int64(12)},
		{[]string{"a", "b"}, []any{"a", "b"}},
		{map[string]any{"n": 2}, map[string]any{"n": int64(2)}},
		{profile{Name: "x", Age: 3}, map[string]any{"name": "x", "age": int64(3)}},
	}
	for _, tc := range cases {
		c := mustClaim(t, f, "custom", tc.in)
		if !valuesEqual(c.Value(), tc.want) {
			t.Fatalf("normalize %#v: got %#v want %#v", tc.in, c.Value(), tc.want)
		}
	}
}

func TestClaimVerifyRules(t *testing.T) {
	now := testNow
	rules := VerifyRules{Now: now}
	mk := func(name string, v int64) Claim { return Claim{name: name, value: v} }

	cases := []struct {
		name  string
		claim Claim
		rules VerifyRules
		want  error
		msg   string
	}{
		{"exp future", mk(ClaimExpiration, now.Unix()+1), rules, nil, ""},
		{"exp now", mk(ClaimExpiration, now.Unix()), rules, ErrTokenExpired, "Token has expired"},
		{"exp past", mk(ClaimExpiration, now.Unix()-1), rules, ErrTokenExpired, "Token has expired"},
		{"exp past within leeway", mk(ClaimExpiration, now.Unix()-1), VerifyRules{Now: now, Leeway: 5 * time.Second}, nil, ""},
		{"exp skipped in refresh flow", mk(ClaimExpiration, now.Unix()-100), VerifyRules{Now: now, MaxRefreshPeriod: time.Hour, RefreshFlow: true}, nil, ""},
		{"exp enforced in refresh flow without period", mk(ClaimExpiration, now.Unix()-100), VerifyRules{Now: now, RefreshFlow: true}, ErrTokenExpired, "Token has expired"},
		{"nbf now", mk(ClaimNotBefore, now.Unix()), rules, nil, ""},
		{"nbf future", mk(ClaimNotBefore, now.Unix()+1), rules, ErrTokenInvalid, "Not Before (nbf) timestamp cannot be in the future"},
		{"iat future", mk(ClaimIssuedAt, now.Unix()+1), rules, ErrTokenInvalid, "Issued At (iat) timestamp cannot be in the future"},
		{"iat within refresh period", mk(ClaimIssuedAt, now.Unix()-60), VerifyRules{Now: now, MaxRefreshPeriod: time.Hour}, nil, ""},
		{"iat beyond refresh period", mk(ClaimIssuedAt, now.Unix()-7200), VerifyRules{Now: now, MaxRefreshPeriod: time.Hour}, ErrTokenExpired, "Token has expired"},
		{"jti never verified", Claim{name: ClaimJwtID, value: "x"}, rules, nil, ""},
	}
	for _, tc := range cases {
		err := tc.claim.Verify(tc.rules)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if err.Error() != tc.msg {
			t.Fatalf("%s: expected message %q, got %q", tc.name, tc.msg, err.Error())
		}
	}
}

func TestClaimSetOrderAndReplace(t *testing.T) {
	f := NewClaimFactory(newManualClock(), nil, testOptions())
	set := NewClaimSet(
		mustClaim(t, f, "a", 1),
		mustClaim(t, f, "b", 2),
		mustClaim(t, f, "c", 3),
	)
	set.Add(mustClaim(t, f, "b", 20))

	names := set.Names()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("unexpected order %v", names)
	}
	if c, _ := set.Get("b"); c.Value() != int64(20) {
		t.Fatalf("expected replaced value, got %v", c.Value())
	}
	if !set.HasAll([]string{"a", "c"}) || set.HasAll([]string{"a", "z"}) {
		t.Fatal("unexpected HasAll result")
	}
}

func TestClaimSetVerifyFirstFailureWins(t *testing.T) {
	now := testNow
	set := NewClaimSet(
		Claim{name: ClaimNotBefore, value: now.Unix() + 10},
		Claim{name: ClaimExpiration, value: now.Unix() - 10},
	)
	err := set.Verify(VerifyRules{Now: now})
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected nbf failure first, got %v", err)
	}
}

func TestFromMapCanonicalOrder(t *testing.T) {
	f := NewClaimFactory(newManualClock(), nil, testOptions())
	set, err := f.FromMap(map[string]any{
		"zeta": 1,
		"jti":  "j",
		"alfa": 2,
		"sub":  "s",
		"iss":  "i",
	})
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	want := []string{"iss", "sub", "jti", "alfa", "zeta"}
	got := set.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}
