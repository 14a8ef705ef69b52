//go:build integration

package pgstore

import (
	"context"
	"testing"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestStoreAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("gotoken"),
		postgres.WithUsername("gotoken"),
		postgres.WithPassword("gotoken"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgx pool: %v", err)
	}
	defer pool.Close()

	now := time.Now()
	clock := func() time.Time { return now }
	store := New(pool, WithClock(clock))
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	entry := goToken.BlacklistEntry{ValidUntil: now.Unix(), PurgeAt: now.Add(time.Minute).Unix()}
	if written, err := store.Put(ctx, "jti", entry, time.Minute); err != nil || !written {
		t.Fatalf("put: written=%v err=%v", written, err)
	}
	if written, err := store.Put(ctx, "jti", entry, time.Minute); err != nil || written {
		t.Fatalf("duplicate put: written=%v err=%v", written, err)
	}
	got, ok, err := store.Get(ctx, "jti")
	if err != nil || !ok || got != entry {
		t.Fatalf("get: %+v ok=%v err=%v", got, ok, err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, err := store.Get(ctx, "jti"); err != nil || ok {
		t.Fatalf("expected expired row to be ignored, ok=%v err=%v", ok, err)
	}
	if written, err := store.Put(ctx, "jti", entry, time.Minute); err != nil || !written {
		t.Fatalf("expected put over expired row, written=%v err=%v", written, err)
	}
	now = now.Add(2 * time.Minute)
	if n, err := store.Purge(ctx); err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}
