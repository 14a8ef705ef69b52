package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	goToken "github.com/MrEthical07/goToken"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "GOTOKEN"

// Loaded is the result of a successful load.
type Loaded struct {
	File   File
	Config goToken.Config
}

// Load reads path (optional) and the environment. An empty path loads the
// defaults plus environment overrides only.
func Load(path string) (*Loaded, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return decode(v)
}

// LoadBytes reads configuration from memory. configType is a viper format
// such as "yaml", "json" or "toml".
func LoadBytes(configType string, data []byte) (*Loaded, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := goToken.DefaultConfig()

	v.SetDefault("token.ttl", d.Token.TTL)
	v.SetDefault("token.leeway", d.Token.Leeway)
	v.SetDefault("token.max_refresh_period", d.Token.MaxRefreshPeriod)
	v.SetDefault("token.required_claims", d.Token.RequiredClaims)
	v.SetDefault("token.issuer", d.Token.Issuer)
	v.SetDefault("token.audience", d.Token.Audience)
	v.SetDefault("token.lock_subject", d.Token.LockSubject)

	v.SetDefault("signing.method", d.Signing.Method)
	v.SetDefault("signing.secret", "")
	v.SetDefault("signing.public_key", "")
	v.SetDefault("signing.key_id", "")

	v.SetDefault("blacklist.enabled", d.Blacklist.Enabled)
	v.SetDefault("blacklist.grace_period", d.Blacklist.GracePeriod)
	v.SetDefault("blacklist.key_claim", d.Blacklist.KeyClaim)

	v.SetDefault("refresh.throttle_enabled", d.Refresh.ThrottleEnabled)
	v.SetDefault("refresh.max_attempts", d.Refresh.MaxAttempts)
	v.SetDefault("refresh.window", d.Refresh.Window)
	v.SetDefault("refresh.redis_prefix", d.Refresh.RedisPrefix)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.latency_histograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("security.production_mode", d.Security.ProductionMode)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
}

func decode(v *viper.Viper) (*Loaded, error) {
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	f.Signing.Method = strings.ToLower(strings.TrimSpace(f.Signing.Method))
	f.Store.Driver = strings.ToLower(strings.TrimSpace(f.Store.Driver))

	sv, err := newSchemaValidator()
	if err != nil {
		return nil, err
	}
	if err := sv.check(&f); err != nil {
		return nil, err
	}

	cfg, err := f.Config()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", goToken.ErrInvalidConfig, err)
	}

	return &Loaded{File: f, Config: cfg}, nil
}

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	path   string
	v      *viper.Viper
	logger *slog.Logger

	mu      sync.RWMutex
	current *Loaded
}

// Watch loads path and calls onChange with every later valid revision.
// Invalid revisions are logged and skipped; Current keeps the last good one.
func Watch(path string, logger *slog.Logger, onChange func(*Loaded)) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	first, err := decode(v)
	if err != nil {
		return nil, err
	}

	w := &Watcher{path: filepath.Clean(path), v: v, logger: logger, current: first}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			w.logger.Error("goToken: config reload failed", "path", w.path, "error", err)
			return
		}
		w.mu.Lock()
		w.current = next
		w.mu.Unlock()
		w.logger.Info("goToken: config reloaded", "path", w.path)
		if onChange != nil {
			onChange(next)
		}
	})
	v.WatchConfig()

	return w, nil
}

// Current returns the last valid configuration.
func (w *Watcher) Current() *Loaded {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
