// Package pgstore is a PostgreSQL blacklist store built on pgx. Rows carry an
// expires_at column; expired rows are ignored on read and removed by Purge.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
)

const defaultTableName = "token_blacklist"

const (
	createTable = `create table if not exists %[1]s (
  key text primary key,
  valid_until bigint not null,
  purge_at bigint not null default 0,
  expires_at timestamptz null
)`
	createIndex = "create index if not exists %[1]s_expires_at_idx on %[1]s (expires_at) where expires_at is not null"
	insertRow   = `insert into %[1]s (key, valid_until, purge_at, expires_at) values ($1, $2, $3, $4)
on conflict (key) do update set valid_until = excluded.valid_until, purge_at = excluded.purge_at, expires_at = excluded.expires_at
where %[1]s.expires_at is not null and %[1]s.expires_at <= $5`
	selectRow = "select valid_until, purge_at from %[1]s where key = $1 and (expires_at is null or expires_at > $2)"
	deleteRow = "delete from %[1]s where key = $1"
	deleteAll = "truncate table %[1]s"
	purgeRows = "delete from %[1]s where expires_at is not null and expires_at <= $1"
	countLive = "select count(*) from %[1]s where expires_at is null or expires_at > $1"
)

var (
	ErrMigrate = errors.New("pgstore: migrate")
	ErrInsert  = errors.New("pgstore: insert entry")
	ErrSelect  = errors.New("pgstore: select entry")
	ErrDelete  = errors.New("pgstore: delete entry")
)

// Commander defines the pgx operations required by the store. *pgxpool.Pool,
// *pgx.Conn and pgx.Tx satisfy it.
type Commander interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements goToken.BlacklistStore on a PostgreSQL table.
type Store struct {
	db        Commander
	tableName string
	now       func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithTableName overrides the table name. The name is converted to snake_case.
func WithTableName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.tableName = lo.SnakeCase(name)
		}
	}
}

// WithClock sets the time source used for row expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a Store over db.
func New(db Commander, opts ...Option) *Store {
	s := &Store{db: db, tableName: defaultTableName, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the table and its expiry index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createTable, createIndex} {
		if _, err := s.db.Exec(ctx, fmt.Sprintf(stmt, s.tableName)); err != nil {
			return errors.Join(ErrMigrate, err)
		}
	}
	return nil
}

// Put inserts entry. An existing row is replaced only once it has expired.
func (s *Store) Put(ctx context.Context, key string, entry goToken.BlacklistEntry, ttl time.Duration) (bool, error) {
	now := s.now()
	var expiresAt *time.Time
	if ttl > 0 {
		at := now.Add(ttl)
		expiresAt = &at
	}
	tag, err := s.db.Exec(ctx, fmt.Sprintf(insertRow, s.tableName), key, entry.ValidUntil, entry.PurgeAt, expiresAt, now)
	if err != nil {
		return false, errors.Join(ErrInsert, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns the live entry under key.
func (s *Store) Get(ctx context.Context, key string) (goToken.BlacklistEntry, bool, error) {
	var e goToken.BlacklistEntry
	err := s.db.QueryRow(ctx, fmt.Sprintf(selectRow, s.tableName), key, s.now()).Scan(&e.ValidUntil, &e.PurgeAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return goToken.BlacklistEntry{}, false, nil
		}
		return goToken.BlacklistEntry{}, false, errors.Join(ErrSelect, err)
	}
	return e, true, nil
}

// Delete removes key and reports whether a row existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(deleteRow, s.tableName), key)
	if err != nil {
		return false, errors.Join(ErrDelete, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Flush truncates the table.
func (s *Store) Flush(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(deleteAll, s.tableName)); err != nil {
		return errors.Join(ErrDelete, err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(purgeRows, s.tableName), s.now())
	if err != nil {
		return 0, errors.Join(ErrDelete, err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of live rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, fmt.Sprintf(countLive, s.tableName), s.now()).Scan(&n); err != nil {
		return 0, errors.Join(ErrSelect, err)
	}
	return n, nil
}
