package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the CLI with args against a sqlite file in dir.
func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	base := []string{"--driver", "sqlite", "--path", filepath.Join(dir, "smoke.db"), "--stores", "people"}
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestInsertQueryCount(t *testing.T) {
	dir := t.TempDir()
	people := `[
		{"name": "ada", "team": "x", "age": 36},
		{"name": "bob", "team": "y", "age": 25},
		{"name": "cy", "team": "x", "age": 41}
	]`

	out, err := run(t, dir, people, "insert", "people", "-")
	if err != nil {
		t.Fatal(err)
	}
	if keys := lines(out); len(keys) != 3 || keys[0] == "" {
		t.Fatalf("expected 3 keys, got %q", out)
	}

	out, err = run(t, dir, "", "count", "people")
	if err != nil || strings.TrimSpace(out) != "3" {
		t.Errorf("expected 3, got %q, %v", out, err)
	}
	out, err = run(t, dir, "", "count", "people", "--where", "team:x")
	if err != nil || strings.TrimSpace(out) != "2" {
		t.Errorf("expected 2 in team x, got %q, %v", out, err)
	}

	out, err = run(t, dir, "", "query", "people", "--where", "team:x", "--order", "-age", "--take", "1")
	if err != nil {
		t.Fatal(err)
	}
	got := lines(out)
	if len(got) != 1 || !strings.Contains(got[0], `"name":"cy"`) {
		t.Errorf("expected the oldest of team x, got %q", out)
	}

	out, err = run(t, dir, "", "query", "people", "--order", "name", "--skip", "1")
	if err != nil {
		t.Fatal(err)
	}
	got = lines(out)
	if len(got) != 2 || !strings.Contains(got[0], `"name":"bob"`) {
		t.Errorf("expected bob then cy, got %q", out)
	}
}

func TestQuery_InvalidFlags(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "", "query", "people", "--where", "novalue"); err == nil {
		t.Error("expected an error for a condition without a colon")
	}
	if _, err := run(t, dir, "", "query", "people", "--skip", "-1"); err == nil {
		t.Error("expected an error for a negative skip")
	}
}

func TestInsert_UnknownStore(t *testing.T) {
	if _, err := run(t, t.TempDir(), `{"a":1}`, "insert", "ghosts", "-"); err == nil {
		t.Error("expected an error inserting into an undeclared store")
	}
}

func TestStores(t *testing.T) {
	out, err := run(t, t.TempDir(), "", "stores")
	if err != nil {
		t.Fatal(err)
	}
	if got := lines(out); len(got) != 2 || got[0] != "version 1" || got[1] != "people" {
		t.Errorf("unexpected stores output %q", out)
	}
}

func TestMissingStores(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"count", "people", "--driver", "memory", "--config", filepath.Join(t.TempDir(), "none.yml")})
	if err := cmd.Execute(); !errors.Is(err, errNoStores) {
		t.Errorf("expected errNoStores, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 {
		t.Error("expected version output")
	}
}

func TestToken(t *testing.T) {
	t.Setenv("SMOKEDB_HTTP_AUTH_SECRET", "0123456789abcdef-secret")
	out, err := run(t, t.TempDir(), "", "token", "--subject", "ci", "--ttl", "1m")
	if err != nil {
		t.Fatal(err)
	}
	if parts := strings.Split(strings.TrimSpace(out), "."); len(parts) != 3 {
		t.Errorf("expected a JWT, got %q", out)
	}
}

func TestToken_NoSecret(t *testing.T) {
	t.Setenv("SMOKEDB_HTTP_AUTH_SECRET", "")
	if _, err := run(t, t.TempDir(), "", "token"); err == nil {
		t.Error("expected an error without http.auth_secret")
	}
}
