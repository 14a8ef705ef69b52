package goToken

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Signing.PrivateKey = append([]byte(nil), testSecret...)
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
		wantErr   string
	}{
		{name: "defaults with key", mutate: func(*Config) {}, wantValid: true},
		{name: "negative ttl", mutate: func(c *Config) { c.Token.TTL = -time.Second }, wantErr: "TTL"},
		{name: "non expiring allowed", mutate: func(c *Config) { c.Token.TTL = 0 }, wantValid: true},
		{name: "negative leeway", mutate: func(c *Config) { c.Token.Leeway = -time.Second }, wantErr: "Leeway"},
		{
			name:    "refresh period shorter than ttl",
			mutate:  func(c *Config) { c.Token.MaxRefreshPeriod = time.Minute },
			wantErr: "MaxRefreshPeriod",
		},
		{name: "blank required claim", mutate: func(c *Config) { c.Token.RequiredClaims = []string{" "} }, wantErr: "RequiredClaims"},
		{name: "missing issuer", mutate: func(c *Config) { c.Token.Issuer = "" }, wantErr: "Issuer"},
		{
			name: "missing issuer not required",
			mutate: func(c *Config) {
				c.Token.Issuer = ""
				c.Token.RequiredClaims = []string{ClaimSubject}
			},
			wantValid: true,
		},
		{name: "upper case method", mutate: func(c *Config) { c.Signing.Method = "HS512" }, wantValid: true},
		{name: "unknown method", mutate: func(c *Config) { c.Signing.Method = "rs256" }, wantErr: "unsupported"},
		{name: "missing secret", mutate: func(c *Config) { c.Signing.PrivateKey = nil }, wantErr: "requires PrivateKey"},
		{name: "weak secret", mutate: func(c *Config) { c.Signing.PrivateKey = []byte("weak-key") }, wantErr: "256 bits"},
		{name: "ed25519 without public key", mutate: func(c *Config) { c.Signing.Method = "ed25519" }, wantErr: "PublicKey"},
		{name: "negative grace", mutate: func(c *Config) { c.Blacklist.GracePeriod = -time.Second }, wantErr: "GracePeriod"},
		{
			name: "throttle without attempts",
			mutate: func(c *Config) {
				c.Refresh.ThrottleEnabled = true
				c.Refresh.MaxAttempts = 0
			},
			wantErr: "MaxAttempts",
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantErr: "BufferSize",
		},
		{
			name: "production forbids non expiring",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Token.TTL = 0
			},
			wantErr: "non-expiring",
		},
		{
			name: "production requires blacklist",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Blacklist.Enabled = false
			},
			wantErr: "blacklist",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := validTestConfig()
	cfg.Token.Leeway = 5 * time.Second
	cfg.Token.MaxRefreshPeriod = 2 * time.Hour
	cfg.Token.Audience = "api"
	cfg.Blacklist.GracePeriod = 3 * time.Second

	opts := cfg.Options()
	if opts.TTL != time.Hour || opts.Leeway != 5*time.Second || opts.MaxRefreshPeriod != 2*time.Hour {
		t.Fatalf("unexpected durations %+v", opts)
	}
	if !opts.BlacklistEnabled || opts.BlacklistGracePeriod != 3*time.Second || opts.Issuer != "gotoken" {
		t.Fatalf("unexpected blacklist or issuer options %+v", opts)
	}
	aud := opts.Validators[ClaimAudience]
	if aud == nil {
		t.Fatal("expected audience validator")
	}
	if !aud("api") || !aud([]any{"web", "api"}) || aud("web") || aud(42) {
		t.Fatal("audience validator must accept only the configured audience")
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("derived options must validate: %v", err)
	}
}

func TestCloneConfigIsDeep(t *testing.T) {
	cfg := validTestConfig()
	cfg.Signing.VerifyKeys = map[string][]byte{"k1": []byte("abc")}

	out := cloneConfig(cfg)
	cfg.Signing.PrivateKey[0] = 'X'
	cfg.Signing.VerifyKeys["k1"][0] = 'X'
	cfg.Token.RequiredClaims[0] = "changed"

	if out.Signing.PrivateKey[0] == 'X' || out.Signing.VerifyKeys["k1"][0] == 'X' || out.Token.RequiredClaims[0] == "changed" {
		t.Fatal("cloneConfig must not share slices or maps")
	}
}

func TestDefaultInvalidationIsImmediate(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Blacklist.GracePeriod != 0 || cfg.Options().BlacklistGracePeriod != 0 {
		t.Fatalf("default grace period must be zero, got %v", cfg.Blacklist.GracePeriod)
	}
	if !cfg.Blacklist.Enabled {
		t.Fatal("default config must enable the blacklist")
	}
}
