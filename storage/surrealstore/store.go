// Package surrealstore is a SurrealDB blacklist store. Each entry is a record
// keyed by the token identity; expiry is an expires_at field in unix
// milliseconds, checked on read. Records carry the id of the Put that
// created them, which is how a Put learns whether it won.
package surrealstore

import (
	"context"
	"fmt"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/google/uuid"
)

const defaultTable = "token_blacklist"

const (
	putQuery = `BEGIN TRANSACTION;
DELETE type::thing($tb, $key) WHERE expires_at != NONE AND expires_at <= $now;
IF array::len((SELECT id FROM type::thing($tb, $key))) = 0 {
	CREATE type::thing($tb, $key) CONTENT { valid_until: $valid_until, purge_at: $purge_at, expires_at: $expires_at, writer: $writer };
};
SELECT VALUE writer FROM type::thing($tb, $key);
COMMIT TRANSACTION;`
	getQuery    = "SELECT valid_until, purge_at FROM type::thing($tb, $key) WHERE expires_at = NONE OR expires_at > $now;"
	deleteQuery = "DELETE type::thing($tb, $key) RETURN BEFORE;"
	flushQuery  = "DELETE type::table($tb);"
	purgeQuery  = "DELETE type::table($tb) WHERE expires_at != NONE AND expires_at <= $now RETURN BEFORE;"
)

// Store implements goToken.BlacklistStore on a SurrealDB table.
type Store struct {
	db    Querier
	table string
	now   func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithTable overrides the table name.
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// WithClock sets the time source used for record expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a Store over db.
func New(db Querier, opts ...Option) *Store {
	s := &Store{db: db, table: defaultTable, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put creates the record unless a live one exists. An expired record is
// removed first, inside the same transaction. The last statement reads back
// the record's writer; the entry was written only if it is this call's id.
func (s *Store) Put(ctx context.Context, key string, entry goToken.BlacklistEntry, ttl time.Duration) (bool, error) {
	now := s.now()
	writer := uuid.NewString()
	var expiresAt any
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixMilli()
	}
	results, err := s.db.Query(ctx, putQuery, map[string]any{
		"tb":          s.table,
		"key":         key,
		"now":         now.UnixMilli(),
		"valid_until": entry.ValidUntil,
		"purge_at":    entry.PurgeAt,
		"expires_at":  expiresAt,
		"writer":      writer,
	})
	if err != nil {
		return false, err
	}
	if len(results) == 0 {
		return false, fmt.Errorf("%w: put returned no results", ErrQuery)
	}
	for _, r := range results {
		if r.Status != "OK" {
			return false, fmt.Errorf("%w: %s", ErrQuery, r.Error)
		}
	}
	for _, v := range asSlice(results[len(results)-1].Result) {
		if v == writer {
			return true, nil
		}
	}
	return false, nil
}

// Get returns the live record under key.
func (s *Store) Get(ctx context.Context, key string) (goToken.BlacklistEntry, bool, error) {
	rows, err := s.rows(ctx, getQuery, map[string]any{"tb": s.table, "key": key, "now": s.now().UnixMilli()})
	if err != nil {
		return goToken.BlacklistEntry{}, false, err
	}
	if len(rows) == 0 {
		return goToken.BlacklistEntry{}, false, nil
	}
	rec, ok := rows[0].(map[string]any)
	if !ok {
		return goToken.BlacklistEntry{}, false, fmt.Errorf("%w: unexpected record %T", ErrQuery, rows[0])
	}
	return goToken.BlacklistEntry{
		ValidUntil: toInt64(rec["valid_until"]),
		PurgeAt:    toInt64(rec["purge_at"]),
	}, true, nil
}

// Delete removes key and reports whether a record existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	rows, err := s.rows(ctx, deleteQuery, map[string]any{"tb": s.table, "key": key})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Flush removes every record of the table.
func (s *Store) Flush(ctx context.Context) error {
	_, err := s.rows(ctx, flushQuery, map[string]any{"tb": s.table})
	return err
}

// Purge removes expired records and returns how many were deleted.
func (s *Store) Purge(ctx context.Context) (int, error) {
	rows, err := s.rows(ctx, purgeQuery, map[string]any{"tb": s.table, "now": s.now().UnixMilli()})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// rows runs a single statement and returns its result as a slice.
func (s *Store) rows(ctx context.Context, sql string, vars map[string]any) ([]any, error) {
	results, err := s.db.Query(ctx, sql, vars)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	r := results[0]
	if r.Status != "OK" {
		return nil, fmt.Errorf("%w: %s", ErrQuery, r.Error)
	}
	return asSlice(r.Result), nil
}

func asSlice(v any) []any {
	switch v := v.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
