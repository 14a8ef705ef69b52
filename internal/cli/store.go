package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/config"
	"github.com/MrEthical07/goToken/storage/memstore"
	"github.com/MrEthical07/goToken/storage/pgstore"
	"github.com/MrEthical07/goToken/storage/redisstore"
	"github.com/MrEthical07/goToken/storage/surrealstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// backend is an opened blacklist store plus the Redis client, when the
// driver provides one, for the refresh throttle.
type backend struct {
	store goToken.BlacklistStore
	redis redis.UniversalClient
	close func()
}

func openBackend(ctx context.Context, sec config.StoreSection, prefix string, attempts uint64, logger *slog.Logger) (*backend, error) {
	switch sec.Driver {
	case "memory", "":
		return &backend{store: memstore.New(), close: func() {}}, nil

	case "redis":
		opts, err := redis.ParseURL(sec.DSN)
		if err != nil {
			return nil, fmt.Errorf("store.dsn: %w", err)
		}
		client := redis.NewClient(opts)
		if err := connect(ctx, attempts, logger, "redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}); err != nil {
			_ = client.Close()
			return nil, err
		}
		return &backend{
			store: redisstore.New(client, prefix),
			redis: client,
			close: func() { _ = client.Close() },
		}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, sec.DSN)
		if err != nil {
			return nil, fmt.Errorf("store.dsn: %w", err)
		}
		if err := connect(ctx, attempts, logger, "postgres", pool.Ping); err != nil {
			pool.Close()
			return nil, err
		}
		store := pgstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{store: store, close: pool.Close}, nil

	case "surreal":
		cfg, err := surrealConfig(sec.DSN)
		if err != nil {
			return nil, err
		}
		var client *surrealstore.Client
		if err := connect(ctx, attempts, logger, "surreal", func(ctx context.Context) error {
			c, err := surrealstore.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			client = c
			return nil
		}); err != nil {
			return nil, err
		}
		return &backend{
			store: surrealstore.New(client),
			close: func() { _ = client.Close(context.Background()) },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", sec.Driver)
	}
}

// connect retries fn with a capped Fibonacci backoff.
func connect(ctx context.Context, attempts uint64, logger *slog.Logger, name string, fn func(context.Context) error) error {
	if attempts == 0 {
		attempts = 1
	}
	b := retry.NewFibonacci(100 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxRetries(attempts-1, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			logger.Debug("gotoken: store not ready", "driver", name, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", name, err)
	}
	return nil
}

// surrealConfig parses ws://user:pass@host:port/namespace/database.
func surrealConfig(dsn string) (surrealstore.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return surrealstore.Config{}, fmt.Errorf("store.dsn: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return surrealstore.Config{}, fmt.Errorf("store.dsn: expected /namespace/database path, got %q", u.Path)
	}

	cfg := surrealstore.Config{
		Endpoint:  (&url.URL{Scheme: u.Scheme, Host: u.Host}).String(),
		Namespace: parts[0],
		Database:  parts[1],
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}
