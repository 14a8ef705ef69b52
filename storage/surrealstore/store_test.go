package surrealstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goToken "github.com/MrEthical07/goToken"
)

type fakeQuerier struct {
	sql     []string
	vars    []map[string]any
	results []Result
	err     error
	// owner, when set, answers the writer read-back of a put.
	owner func(vars map[string]any) any
}

func (f *fakeQuerier) Query(_ context.Context, sql string, vars map[string]any) ([]Result, error) {
	f.sql = append(f.sql, sql)
	f.vars = append(f.vars, vars)
	if f.owner != nil {
		out := append([]Result(nil), f.results...)
		return append(out, Result{Status: "OK", Result: []any{f.owner(vars)}}), f.err
	}
	return f.results, f.err
}

func ownWrite(vars map[string]any) any { return vars["writer"] }

func TestPutWritesExpiryInMillis(t *testing.T) {
	now := time.Unix(1700000000, 0)
	q := &fakeQuerier{results: []Result{{Status: "OK"}, {Status: "OK"}}, owner: ownWrite}
	s := New(q, WithClock(func() time.Time { return now }))

	written, err := s.Put(context.Background(), "jti", goToken.BlacklistEntry{ValidUntil: 1, PurgeAt: 2}, time.Minute)
	if err != nil || !written {
		t.Fatalf("put: written=%v err=%v", written, err)
	}
	vars := q.vars[0]
	if vars["expires_at"] != now.Add(time.Minute).UnixMilli() {
		t.Fatalf("unexpected expires_at %v", vars["expires_at"])
	}
	if vars["tb"] != defaultTable || vars["key"] != "jti" {
		t.Fatalf("unexpected record target %v", vars)
	}
}

func TestPutExistingRecordIsNotWritten(t *testing.T) {
	q := &fakeQuerier{
		results: []Result{{Status: "OK"}, {Status: "OK"}},
		owner:   func(map[string]any) any { return "someone-else" },
	}
	s := New(q)
	written, err := s.Put(context.Background(), "jti", goToken.BlacklistEntry{}, 0)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if written {
		t.Fatal("expected existing record to be kept")
	}
	if q.vars[0]["expires_at"] != nil {
		t.Fatalf("expected no expiry for forever entries, got %v", q.vars[0]["expires_at"])
	}
}

func TestPutUsesDistinctWriterIDs(t *testing.T) {
	q := &fakeQuerier{results: []Result{{Status: "OK"}, {Status: "OK"}}, owner: ownWrite}
	s := New(q)
	for range 2 {
		if written, err := s.Put(context.Background(), "jti", goToken.BlacklistEntry{}, 0); err != nil || !written {
			t.Fatalf("put: written=%v err=%v", written, err)
		}
	}
	first, second := q.vars[0]["writer"], q.vars[1]["writer"]
	if first == "" || first == second {
		t.Fatalf("expected distinct writer ids, got %v and %v", first, second)
	}
	if !strings.Contains(q.sql[0], "SELECT VALUE writer") {
		t.Fatalf("put must read the writer back, got %q", q.sql[0])
	}
}

func TestPutWithoutResultsIsAnError(t *testing.T) {
	s := New(&fakeQuerier{})
	if _, err := s.Put(context.Background(), "jti", goToken.BlacklistEntry{}, 0); !errors.Is(err, ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
}

func TestGetDecodesRecord(t *testing.T) {
	q := &fakeQuerier{results: []Result{{Status: "OK", Result: []any{
		map[string]any{"valid_until": uint64(10), "purge_at": int64(20)},
	}}}}
	s := New(q, WithTable("bl"))
	e, ok, err := s.Get(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if e.ValidUntil != 10 || e.PurgeAt != 20 {
		t.Fatalf("unexpected entry %+v", e)
	}
	if q.vars[0]["tb"] != "bl" {
		t.Fatalf("expected custom table, got %v", q.vars[0]["tb"])
	}

	q.results = []Result{{Status: "OK", Result: []any{}}}
	if _, ok, err := s.Get(context.Background(), "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
}

func TestStatementErrorsSurface(t *testing.T) {
	q := &fakeQuerier{results: []Result{{Status: "ERR", Error: "permission denied"}}}
	s := New(q)
	if _, err := s.Delete(context.Background(), "k"); !errors.Is(err, ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
	if _, err := s.Put(context.Background(), "k", goToken.BlacklistEntry{}, 0); !errors.Is(err, ErrQuery) {
		t.Fatalf("expected ErrQuery from put, got %v", err)
	}
}

func TestDeleteAndPurgeCountRows(t *testing.T) {
	q := &fakeQuerier{results: []Result{{Status: "OK", Result: []any{map[string]any{}, map[string]any{}}}}}
	s := New(q)
	n, err := s.Purge(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if !strings.Contains(q.sql[0], "expires_at <= $now") {
		t.Fatalf("unexpected purge query %q", q.sql[0])
	}
	removed, err := s.Delete(context.Background(), "k")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
}
