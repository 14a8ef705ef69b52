package goToken

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// PayloadValidator turns a claim set into a Payload after checking required
// claims, claim verification rules and custom validators.
type PayloadValidator struct {
	clock Clock
	opts  Options
}

// NewPayloadValidator returns a validator reading "now" from clock.
func NewPayloadValidator(clock Clock, opts Options) *PayloadValidator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PayloadValidator{clock: clock, opts: opts.clone()}
}

// Check validates set and returns the resulting Payload.
func (v *PayloadValidator) Check(set *ClaimSet) (*Payload, error) {
	return v.check(set, false)
}

// CheckRefresh validates set for the refresh flow, where exp is not enforced
// once a max refresh period bounds the window.
func (v *PayloadValidator) CheckRefresh(set *ClaimSet) (*Payload, error) {
	return v.check(set, true)
}

// IsValid reports whether Check succeeds. Failures outside the token error
// family are not expected here and also report false.
func (v *PayloadValidator) IsValid(set *ClaimSet) bool {
	_, err := v.Check(set)
	return err == nil
}

func (v *PayloadValidator) check(set *ClaimSet, refreshFlow bool) (*Payload, error) {
	if set == nil {
		return nil, newError(KindTokenInvalid, "JWT does not contain the required claims")
	}
	required := v.opts.RequiredClaims
	// A set without exp is accepted as non-expiring even when exp is listed.
	if !set.Has(ClaimExpiration) {
		required = lo.Without(required, ClaimExpiration)
	}
	if !set.HasAll(required) {
		return nil, newError(KindTokenInvalid, "JWT does not contain the required claims")
	}

	rules := VerifyRules{
		Now:              v.clock.Now(),
		Leeway:           v.opts.Leeway,
		MaxRefreshPeriod: v.opts.MaxRefreshPeriod,
		RefreshFlow:      refreshFlow,
	}
	if err := set.Verify(rules); err != nil {
		return nil, err
	}

	names := lo.Keys(v.opts.Validators)
	sort.Strings(names)
	for _, name := range names {
		c, ok := set.Get(name)
		if !ok {
			continue
		}
		if !v.opts.Validators[name](copyValue(c.value), name) {
			return nil, newError(KindTokenInvalid, fmt.Sprintf("Validation failed for claim [%s]", name))
		}
	}

	return &Payload{set: set.clone()}, nil
}

// CheckPayload is the functional form of PayloadValidator.Check using the
// system clock.
func CheckPayload(set *ClaimSet, opts Options) (*Payload, error) {
	return NewPayloadValidator(nil, opts).Check(set)
}

// IsValidPayload reports whether CheckPayload succeeds.
func IsValidPayload(set *ClaimSet, opts Options) bool {
	_, err := CheckPayload(set, opts)
	return err == nil
}

// CheckToken checks the wire shape of a compact token: three dot separated
// segments, none empty and none padded with whitespace.
func CheckToken(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return newError(KindTokenInvalid, "Wrong number of segments")
	}
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || trimmed != part {
			return newError(KindTokenInvalid, "Malformed token")
		}
	}
	return nil
}

// IsValidToken reports whether CheckToken succeeds.
func IsValidToken(token string) bool {
	return CheckToken(token) == nil
}
