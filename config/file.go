package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
)

// File mirrors goToken.Config in a form viper can decode. Key material is
// text: Secret is raw unless prefixed "base64:", PublicKey is base64.
type File struct {
	Token     TokenSection     `mapstructure:"token"`
	Signing   SigningSection   `mapstructure:"signing"`
	Blacklist BlacklistSection `mapstructure:"blacklist"`
	Refresh   RefreshSection   `mapstructure:"refresh"`
	Audit     AuditSection     `mapstructure:"audit"`
	Metrics   MetricsSection   `mapstructure:"metrics"`
	Security  SecuritySection  `mapstructure:"security"`
	Store     StoreSection     `mapstructure:"store"`
}

type TokenSection struct {
	TTL              time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Leeway           time.Duration `mapstructure:"leeway" validate:"gte=0"`
	MaxRefreshPeriod time.Duration `mapstructure:"max_refresh_period" validate:"gte=0"`
	RequiredClaims   []string      `mapstructure:"required_claims" validate:"dive,required"`
	Issuer           string        `mapstructure:"issuer"`
	Audience         string        `mapstructure:"audience"`
	LockSubject      bool          `mapstructure:"lock_subject"`
}

type SigningSection struct {
	Method    string `mapstructure:"method" validate:"required,oneof=hs256 hs384 hs512 ed25519"`
	Secret    string `mapstructure:"secret"`
	PublicKey string `mapstructure:"public_key" validate:"omitempty,base64"`
	KeyID     string `mapstructure:"key_id" validate:"omitempty,max=128"`
}

type BlacklistSection struct {
	Enabled     bool          `mapstructure:"enabled"`
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"gte=0"`
	KeyClaim    string        `mapstructure:"key_claim" validate:"required"`
}

type RefreshSection struct {
	ThrottleEnabled bool          `mapstructure:"throttle_enabled"`
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gte=0"`
	Window          time.Duration `mapstructure:"window" validate:"gte=0"`
	RedisPrefix     string        `mapstructure:"redis_prefix"`
}

type AuditSection struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" validate:"gte=0"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

type MetricsSection struct {
	Enabled           bool `mapstructure:"enabled"`
	LatencyHistograms bool `mapstructure:"latency_histograms"`
}

type SecuritySection struct {
	ProductionMode bool `mapstructure:"production_mode"`
}

// StoreSection selects the blacklist backend for binaries that wire one.
// The library itself never reads it.
type StoreSection struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory redis postgres surreal"`
	// DSN is a redis:// URL, a Postgres connection string or a SurrealDB
	// endpoint depending on Driver.
	DSN string `mapstructure:"dsn" validate:"required_unless=Driver memory"`
}

const base64Prefix = "base64:"

// Config converts f into an engine configuration.
func (f File) Config() (goToken.Config, error) {
	secret, err := decodeSecret(f.Signing.Secret)
	if err != nil {
		return goToken.Config{}, fmt.Errorf("signing.secret: %w", err)
	}
	var public []byte
	if f.Signing.PublicKey != "" {
		public, err = base64.StdEncoding.DecodeString(f.Signing.PublicKey)
		if err != nil {
			return goToken.Config{}, fmt.Errorf("signing.public_key: %w", err)
		}
	}

	return goToken.Config{
		Token: goToken.TokenConfig{
			TTL:              f.Token.TTL,
			Leeway:           f.Token.Leeway,
			MaxRefreshPeriod: f.Token.MaxRefreshPeriod,
			RequiredClaims:   append([]string(nil), f.Token.RequiredClaims...),
			Issuer:           f.Token.Issuer,
			Audience:         f.Token.Audience,
			LockSubject:      f.Token.LockSubject,
		},
		Signing: goToken.SigningConfig{
			Method:     strings.ToLower(f.Signing.Method),
			PrivateKey: secret,
			PublicKey:  public,
			KeyID:      f.Signing.KeyID,
		},
		Blacklist: goToken.BlacklistPolicy{
			Enabled:     f.Blacklist.Enabled,
			GracePeriod: f.Blacklist.GracePeriod,
			KeyClaim:    f.Blacklist.KeyClaim,
		},
		Refresh: goToken.RefreshConfig{
			ThrottleEnabled: f.Refresh.ThrottleEnabled,
			MaxAttempts:     f.Refresh.MaxAttempts,
			Window:          f.Refresh.Window,
			RedisPrefix:     f.Refresh.RedisPrefix,
		},
		Audit: goToken.AuditConfig{
			Enabled:    f.Audit.Enabled,
			BufferSize: f.Audit.BufferSize,
			DropIfFull: f.Audit.DropIfFull,
		},
		Metrics: goToken.MetricsConfig{
			Enabled:                 f.Metrics.Enabled,
			EnableLatencyHistograms: f.Metrics.LatencyHistograms,
		},
		Security: goToken.SecurityConfig{
			ProductionMode: f.Security.ProductionMode,
		},
	}, nil
}

func decodeSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(s, base64Prefix); ok {
		return base64.StdEncoding.DecodeString(rest)
	}
	return []byte(s), nil
}
