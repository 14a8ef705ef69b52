package goToken

import (
	"errors"
	"time"
)

// ClaimValidator is a custom predicate applied to one claim. It receives a
// copy of the value and the claim name, so one predicate can serve several
// claims.
type ClaimValidator func(value any, name string) bool

// Options is the read-only configuration surface of the lifecycle core.
//
// Options values are copied into the components built from them; changing
// the original afterwards has no effect.
type Options struct {
	// RequiredClaims must all be present for a payload to be accepted. exp is
	// only enforced when the claim set itself carries an exp claim.
	RequiredClaims []string
	// Validators run after claim verification, in sorted claim name order.
	Validators map[string]ClaimValidator
	// Leeway widens the exp, nbf and future-iat windows to tolerate clock skew.
	Leeway time.Duration
	// MaxRefreshPeriod bounds how long after iat a token may be refreshed.
	// Zero disables the bound.
	MaxRefreshPeriod time.Duration
	// TTL of issued tokens. Zero issues non-expiring tokens.
	TTL time.Duration
	// BlacklistGracePeriod delays the effect of an invalidation: for this long
	// after Invalidate or Refresh the old token still decodes, so requests
	// already in flight with it succeed. The cost is that a revoked token stays
	// usable for the same span. A consumed token can never be refreshed again,
	// grace or not. Zero, the default, makes invalidation immediate.
	BlacklistGracePeriod time.Duration
	// BlacklistEnabled switches invalidation and blacklist checks on.
	BlacklistEnabled bool
	// Issuer is the default iss claim. Empty omits iss from generated payloads.
	Issuer string
	// LockSubject adds a prv claim binding the token to the subject's type.
	LockSubject bool
}

// DefaultRequiredClaims is the default RequiredClaims list.
var DefaultRequiredClaims = []string{
	ClaimIssuer,
	ClaimIssuedAt,
	ClaimExpiration,
	ClaimNotBefore,
	ClaimSubject,
	ClaimJwtID,
}

// DefaultOptions returns the defaults used when no configuration is supplied.
func DefaultOptions() Options {
	return Options{
		RequiredClaims:   append([]string(nil), DefaultRequiredClaims...),
		TTL:              60 * time.Minute,
		MaxRefreshPeriod: 0,
		BlacklistEnabled: true,
		Issuer:           "gotoken",
	}
}

// Validate rejects option combinations the lifecycle core cannot honour.
func (o Options) Validate() error {
	if o.TTL < 0 {
		return errors.New("ttl must not be negative")
	}
	if o.Leeway < 0 {
		return errors.New("leeway must not be negative")
	}
	if o.MaxRefreshPeriod < 0 {
		return errors.New("max refresh period must not be negative")
	}
	if o.BlacklistGracePeriod < 0 {
		return errors.New("blacklist grace period must not be negative")
	}
	if o.MaxRefreshPeriod > 0 && o.TTL > 0 && o.MaxRefreshPeriod < o.TTL {
		return errors.New("max refresh period must not be shorter than ttl")
	}
	for name, fn := range o.Validators {
		if fn == nil {
			return errors.New("nil validator for claim " + name)
		}
	}
	return nil
}

func (o Options) clone() Options {
	out := o
	out.RequiredClaims = append([]string(nil), o.RequiredClaims...)
	if o.Validators != nil {
		out.Validators = make(map[string]ClaimValidator, len(o.Validators))
		for k, v := range o.Validators {
			out.Validators[k] = v
		}
	}
	return out
}
