package goToken

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Builder assembles an Engine. A Builder can build exactly one Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  BlacklistStore
	codec  TokenCodec
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger

	auditSink      AuditSink
	tracerProvider trace.TracerProvider
	validators     map[string]ClaimValidator

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used by the refresh throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the blacklist store. It is required while the blacklist is
// enabled; see the storage/ packages for implementations.
func (b *Builder) WithStore(store BlacklistStore) *Builder {
	b.store = store
	return b
}

// WithCodec overrides the codec built from Config.Signing.
func (b *Builder) WithCodec(codec TokenCodec) *Builder {
	b.codec = codec
	return b
}

func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithIDGenerator(ids IDGenerator) *Builder {
	b.ids = ids
	return b
}

// WithLogger sets the logger for best-effort failures. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink. Events are only produced when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets the provider for Engine spans. Defaults to the
// global otel provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithValidator registers a custom predicate for claim name.
func (b *Builder) WithValidator(name string, fn ClaimValidator) *Builder {
	if b.validators == nil {
		b.validators = make(map[string]ClaimValidator)
	}
	b.validators[name] = fn
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if cfg.Blacklist.Enabled && b.store == nil {
		return nil, fmt.Errorf("%w: blacklist enabled without a store", ErrInvalidConfig)
	}
	if cfg.Refresh.ThrottleEnabled && b.redis == nil {
		return nil, fmt.Errorf("%w: refresh throttle requires redis client", ErrInvalidConfig)
	}

	clock := b.clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	// -------- CODEC --------
	codec := b.codec
	if codec == nil {
		c, err := jwt.NewCodec(jwt.Config{
			SigningMethod: jwt.SigningMethod(cfg.Signing.Method),
			PrivateKey:    cloneBytes(cfg.Signing.PrivateKey),
			PublicKey:     cloneBytes(cfg.Signing.PublicKey),
			KeyID:         cfg.Signing.KeyID,
			VerifyKeys:    cfg.Signing.VerifyKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		codec = c
	}

	// -------- PAYLOADS --------
	opts := cfg.Options()
	for name, fn := range b.validators {
		if _, taken := opts.Validators[name]; taken {
			return nil, fmt.Errorf("%w: validator for %s already configured", ErrInvalidConfig, name)
		}
		if opts.Validators == nil {
			opts.Validators = make(map[string]ClaimValidator, len(b.validators))
		}
		opts.Validators[name] = fn
	}
	payloads, err := NewPayloadBuilder(clock, b.ids, opts)
	if err != nil {
		return nil, err
	}

	// -------- BLACKLIST --------
	var (
		blacklist *Blacklist
		revoker   Revoker
	)
	if cfg.Blacklist.Enabled {
		blacklist, err = NewBlacklist(b.store, BlacklistConfig{
			GracePeriod:   cfg.Blacklist.GracePeriod,
			Leeway:        cfg.Token.Leeway,
			RefreshWindow: cfg.Token.MaxRefreshPeriod,
			KeyClaim:      cfg.Blacklist.KeyClaim,
			Clock:         clock,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		revoker = blacklist
	}

	manager, err := NewManager(codec, revoker, payloads)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	engine := &Engine{
		config:    cfg,
		manager:   manager,
		blacklist: blacklist,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		tracer:    tp.Tracer(tracerName),
		clock:     clock,
	}

	engine.limiter = rate.New(b.redis, rate.Config{
		Enabled:     cfg.Refresh.ThrottleEnabled,
		MaxAttempts: cfg.Refresh.MaxAttempts,
		Window:      cfg.Refresh.Window,
		Prefix:      cfg.Refresh.RedisPrefix,
	})
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
