package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "jdue")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoadRemove(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); err == nil {
		t.Fatalf("expected error when token file missing")
	}
	if err := saveToken(tokenFile{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	st, err := os.Stat(tokenPath())
	if err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode: %v %v", st, err)
	}
	tok, err := loadToken()
	if err != nil || tok != "tok" {
		t.Fatalf("loadToken: tok=%q err=%v", tok, err)
	}
	if err := saveToken(tokenFile{AccessToken: "tok2", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); err == nil {
		t.Fatalf("want error for expired token")
	}

	if err := removeToken(); err != nil {
		t.Fatalf("removeToken: %v", err)
	}
	if err := removeToken(); err != nil {
		t.Fatalf("removeToken twice: %v", err)
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printJSON(&buf, map[string]any{"a": 1})

	var m map[string]any
	if json.Unmarshal(buf.Bytes(), &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  ")) {
		t.Fatalf("printJSON should indent")
	}
}

func Test_promptPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("s3cret-pw"), nil }
	var buf bytes.Buffer
	pw, err := promptPassword(&buf)
	if err != nil || pw != "s3cret-pw" {
		t.Fatalf("promptPassword: %q %v", pw, err)
	}
	if !strings.HasPrefix(buf.String(), "Password: ") {
		t.Fatalf("prompt not written: %q", buf.String())
	}

	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	if _, err := promptPassword(&buf); err == nil {
		t.Fatalf("want error from terminal read")
	}
}

func Test_parseReminder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		value  int
		unit   string
		before bool
	}{
		{"30m", 30, "minutes", true},
		{"2h", 2, "hours", true},
		{"+1d", 1, "days", false},
	}
	for _, c := range cases {
		got, err := parseReminder(c.in)
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if got["value"] != c.value || got["unit"] != c.unit || got["isBefore"] != c.before {
			t.Fatalf("%s: got %v", c.in, got)
		}
	}
	for _, bad := range []string{"", "m", "5w", "xh", "-3h"} {
		if _, err := parseReminder(bad); err == nil {
			t.Fatalf("%q: want error", bad)
		}
	}
}
