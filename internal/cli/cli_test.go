package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	"github.com/alicebob/miniredis/v2"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func useRedisStore(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("GOTOKEN_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("GOTOKEN_STORE_DRIVER", "redis")
	t.Setenv("GOTOKEN_STORE_DSN", "redis://"+mr.Addr())
	return mr
}

func TestSecretCommand(t *testing.T) {
	out, err := run(t, "secret", "--method", "hs512", "-o", "json")
	if err != nil {
		t.Fatalf("secret failed: %v", err)
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(out), &fields); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out, err)
	}
	enc, ok := strings.CutPrefix(fields[envSecret], "base64:")
	if !ok {
		t.Fatalf("expected base64: secret, got %q", fields[envSecret])
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || len(raw) != 64 {
		t.Fatalf("expected 64 byte secret, got %d (%v)", len(raw), err)
	}
	if fields[envMethod] != "hs512" {
		t.Fatalf("expected method hs512, got %q", fields[envMethod])
	}
}

func TestSecretCommandEd25519(t *testing.T) {
	out, err := run(t, "secret", "--method", "ed25519")
	if err != nil {
		t.Fatalf("secret failed: %v", err)
	}
	if !strings.Contains(out, envPublicKey+": ") || !strings.Contains(out, envSecret+": base64:") {
		t.Fatalf("expected key pair in output, got %q", out)
	}
}

func TestSecretCommandRejectsShortKey(t *testing.T) {
	if _, err := run(t, "secret", "--bytes", "16"); err == nil {
		t.Fatal("expected short key to be rejected")
	}
}

func TestSecretEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("APP_NAME=demo\nGOTOKEN_SIGNING_SECRET=old\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "secret", "--env-file", path); err == nil {
		t.Fatal("expected refusal to overwrite without --force")
	}

	if _, err := run(t, "secret", "--env-file", path, "--force"); err != nil {
		t.Fatalf("secret --force failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	content := string(data)
	if !strings.Contains(content, "APP_NAME=demo\n") {
		t.Fatalf("expected unrelated lines kept, got %q", content)
	}
	if strings.Contains(content, "GOTOKEN_SIGNING_SECRET=old") || !strings.Contains(content, "GOTOKEN_SIGNING_SECRET=base64:") {
		t.Fatalf("expected secret replaced, got %q", content)
	}
	if !strings.Contains(content, "GOTOKEN_SIGNING_METHOD=hs256\n") {
		t.Fatalf("expected method appended, got %q", content)
	}
}

func TestIssueDecodeRevokeWithRedis(t *testing.T) {
	useRedisStore(t)

	out, err := run(t, "issue", "--sub", "user-7", "--claim", "role=admin", "--claim", "tier=2")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	token := strings.TrimSpace(out)

	out, err = run(t, "decode", token, "-o", "json")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	var claims map[string]any
	if err := json.Unmarshal([]byte(out), &claims); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if claims["sub"] != "user-7" || claims["role"] != "admin" || claims["tier"] != float64(2) {
		t.Fatalf("unexpected claims %v", claims)
	}

	if _, err := run(t, "revoke", token); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := run(t, "decode", token); !errors.Is(err, goToken.ErrTokenBlacklisted) {
		t.Fatalf("expected blacklisted after revoke, got %v", err)
	}
}

func TestRefreshCommand(t *testing.T) {
	useRedisStore(t)

	out, err := run(t, "issue", "--sub", "user-8")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	old := strings.TrimSpace(out)

	out, err = run(t, "refresh", old, "-o", "json")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	var res map[string]string
	if err := json.Unmarshal([]byte(out), &res); err != nil || res["token"] == "" || res["token"] == old {
		t.Fatalf("expected a new token, got %q (%v)", out, err)
	}

	if _, err := run(t, "refresh", old); !errors.Is(err, goToken.ErrTokenBlacklisted) {
		t.Fatalf("expected old token to be consumed, got %v", err)
	}
}

func TestIssueRejectsBadClaim(t *testing.T) {
	useRedisStore(t)
	if _, err := run(t, "issue", "--claim", "novalue"); err == nil {
		t.Fatal("expected error for malformed claim flag")
	}
}

func TestOpenBackendRetriesThenFails(t *testing.T) {
	mr := useRedisStore(t)
	mr.Close()

	_, err := run(t, "issue", "--sub", "x", "--connect-retries", "2")
	if err == nil || !strings.Contains(err.Error(), "connect redis") {
		t.Fatalf("expected connection failure, got %v", err)
	}
}

func TestLoadtestCommand(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")

	out, err := run(t, "loadtest", "--tokens", "20", "--ops", "50", "--concurrency", "4")
	if err != nil {
		t.Fatalf("loadtest failed: %v", err)
	}
	for _, want := range []string{
		"using miniredis",
		"authenticate: ops=50 failures=0",
		"invalidate: ops=20 failures=0",
		"authenticate-revoked: ops=50 failures=0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestParseClaims(t *testing.T) {
	got, err := parseClaims([]string{"n=5", "ok=true", "at=2024-01-02T03:04:05Z", "s=hello=world"})
	if err != nil {
		t.Fatalf("parseClaims failed: %v", err)
	}
	if got["n"] != int64(5) || got["ok"] != true || got["at"] != int64(1704164645) || got["s"] != "hello=world" {
		t.Fatalf("unexpected claims %v", got)
	}
}

func TestSurrealConfig(t *testing.T) {
	cfg, err := surrealConfig("ws://root:pw@localhost:8000/app/auth")
	if err != nil {
		t.Fatalf("surrealConfig failed: %v", err)
	}
	if cfg.Endpoint != "ws://localhost:8000" || cfg.User != "root" || cfg.Password != "pw" || cfg.Namespace != "app" || cfg.Database != "auth" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := surrealConfig("ws://localhost:8000/only"); err == nil {
		t.Fatal("expected error for missing database")
	}
}
