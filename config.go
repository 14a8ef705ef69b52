package goToken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Config is the full Engine configuration.
//
// Config values are copied by the Builder; mutating a Config after Build has
// no effect on the Engine.
type Config struct {
	Token     TokenConfig
	Signing   SigningConfig
	Blacklist BlacklistPolicy
	Refresh   RefreshConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the claims of issued tokens and how they are checked.
type TokenConfig struct {
	// TTL of issued tokens. Zero issues non-expiring tokens.
	TTL              time.Duration
	Leeway           time.Duration
	MaxRefreshPeriod time.Duration
	RequiredClaims   []string
	Issuer           string
	// Audience is added as aud to issued tokens and enforced on decode when set.
	Audience    string
	LockSubject bool
}

// SigningConfig selects the signing algorithm and key material.
type SigningConfig struct {
	Method     string // "hs256" (default), "hs384", "hs512" or "ed25519"
	PrivateKey []byte
	PublicKey  []byte
	KeyID      string
	VerifyKeys map[string][]byte
}

// BlacklistPolicy controls invalidation.
type BlacklistPolicy struct {
	Enabled bool
	// GracePeriod keeps invalidated tokens accepted for a while so in-flight
	// requests survive a refresh. Leave it at zero unless that matters more
	// than immediate revocation.
	GracePeriod time.Duration
	// KeyClaim names the claim identifying a token in the store. Defaults to jti.
	KeyClaim string
}

// RefreshConfig controls the per-subject refresh throttle. The throttle
// needs a Redis client (Builder.WithRedis).
type RefreshConfig struct {
	ThrottleEnabled bool
	MaxAttempts     int
	Window          time.Duration
	RedisPrefix     string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds deployment posture flags checked by Validate and Lint.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns a development configuration. Signing keys are
// left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:            60 * time.Minute,
			Leeway:         0,
			RequiredClaims: append([]string(nil), DefaultRequiredClaims...),
			Issuer:         "gotoken",
		},
		Signing: SigningConfig{
			Method: "hs256",
		},
		Blacklist: BlacklistPolicy{
			Enabled:     true,
			GracePeriod: 0,
			KeyClaim:    ClaimJwtID,
		},
		Refresh: RefreshConfig{
			ThrottleEnabled: false,
			MaxAttempts:     20,
			Window:          time.Minute,
			RedisPrefix:     "gotoken",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig returns a production preset: short-lived tokens, a
// bounded refresh window, subject locking and the refresh throttle.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.TTL = 5 * time.Minute
	cfg.Token.Leeway = 5 * time.Second
	cfg.Token.MaxRefreshPeriod = 24 * time.Hour
	cfg.Token.LockSubject = true
	cfg.Blacklist.GracePeriod = 10 * time.Second
	cfg.Refresh.ThrottleEnabled = true
	cfg.Refresh.MaxAttempts = 10
	cfg.Security.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.RequiredClaims = append([]string(nil), cfg.Token.RequiredClaims...)
	out.Signing.PrivateKey = cloneBytes(cfg.Signing.PrivateKey)
	out.Signing.PublicKey = cloneBytes(cfg.Signing.PublicKey)
	if cfg.Signing.VerifyKeys != nil {
		out.Signing.VerifyKeys = make(map[string][]byte, len(cfg.Signing.VerifyKeys))
		for kid, key := range cfg.Signing.VerifyKeys {
			out.Signing.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

var supportedSigningMethods = []string{"hs256", "hs384", "hs512", "ed25519"}

// Validate rejects configurations the Engine cannot run with.
func (c *Config) Validate() error {
	// Token
	if c.Token.TTL < 0 {
		return errors.New("Token TTL must be >= 0")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if c.Token.MaxRefreshPeriod < 0 {
		return errors.New("Token MaxRefreshPeriod must be >= 0")
	}
	if c.Token.MaxRefreshPeriod > 0 && c.Token.TTL > 0 && c.Token.MaxRefreshPeriod < c.Token.TTL {
		return errors.New("Token MaxRefreshPeriod must be >= TTL")
	}
	for _, name := range c.Token.RequiredClaims {
		if strings.TrimSpace(name) == "" {
			return errors.New("Token RequiredClaims must not contain empty names")
		}
	}
	if c.Token.Issuer == "" && lo.Contains(c.Token.RequiredClaims, ClaimIssuer) {
		return errors.New("Token Issuer is required while iss is a required claim")
	}

	// Signing
	method := strings.ToLower(c.Signing.Method)
	if !lo.Contains(supportedSigningMethods, method) {
		return fmt.Errorf("unsupported signing method %q", c.Signing.Method)
	}
	if method == "ed25519" {
		if len(c.Signing.PublicKey) == 0 && len(c.Signing.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	} else if len(c.Signing.PrivateKey) == 0 {
		return fmt.Errorf("%s requires PrivateKey", method)
	} else if len(c.Signing.PrivateKey) < 32 {
		return fmt.Errorf("%s PrivateKey must be at least 256 bits", method)
	}

	// Blacklist
	if c.Blacklist.GracePeriod < 0 {
		return errors.New("Blacklist GracePeriod must be >= 0")
	}

	// Refresh throttle
	if c.Refresh.ThrottleEnabled {
		if c.Refresh.MaxAttempts <= 0 {
			return errors.New("Refresh MaxAttempts must be > 0 when ThrottleEnabled is true")
		}
		if c.Refresh.Window <= 0 {
			return errors.New("Refresh Window must be > 0 when ThrottleEnabled is true")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// Production posture
	if c.Security.ProductionMode {
		if c.Token.TTL == 0 {
			return errors.New("ProductionMode forbids non-expiring tokens")
		}
		if !c.Blacklist.Enabled {
			return errors.New("ProductionMode requires the blacklist")
		}
	}

	return nil
}

// Options derives the lifecycle core options from c.
func (c Config) Options() Options {
	opts := Options{
		RequiredClaims:       append([]string(nil), c.Token.RequiredClaims...),
		Leeway:               c.Token.Leeway,
		MaxRefreshPeriod:     c.Token.MaxRefreshPeriod,
		TTL:                  c.Token.TTL,
		BlacklistGracePeriod: c.Blacklist.GracePeriod,
		BlacklistEnabled:     c.Blacklist.Enabled,
		Issuer:               c.Token.Issuer,
		LockSubject:          c.Token.LockSubject,
	}
	if c.Token.Audience != "" {
		opts.Validators = map[string]ClaimValidator{
			ClaimAudience: audienceValidator(c.Token.Audience),
		}
	}
	return opts
}

// audienceValidator accepts a string aud equal to want or a list containing it.
func audienceValidator(want string) ClaimValidator {
	return func(value any, _ string) bool {
		switch v := value.(type) {
		case string:
			return v == want
		case []any:
			return lo.Contains(v, any(want))
		default:
			return false
		}
	}
}
