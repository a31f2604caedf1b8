package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func writeState(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "storage-state.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write storage state: %v", err)
	}

	return path
}

func floatPtr(f float64) *float64 { return &f }

func TestLoadStorageState_NotFound(t *testing.T) {
	_, err := LoadStorageState(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestLoadStorageState_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{{{"},
		{"cookies missing", `{"origins": []}`},
		{"cookies wrong type", `{"cookies": "nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeState(t, tt.content)

			if _, err := LoadStorageState(path); !errors.Is(err, ErrSnapshotMalformed) {
				t.Errorf("err = %v, want ErrSnapshotMalformed", err)
			}
		})
	}
}

func TestLoadStorageState_EmptyCookieListIsValid(t *testing.T) {
	path := writeState(t, `{"cookies": []}`)

	state, err := LoadStorageState(path)
	if err != nil {
		t.Fatalf("LoadStorageState failed: %v", err)
	}

	if len(state.Cookies) != 0 {
		t.Errorf("Cookies = %d, want 0", len(state.Cookies))
	}
}

func TestCookieHeader_Filtering(t *testing.T) {
	state := &StorageState{Cookies: []Cookie{
		{Name: "session", Value: "abc", Domain: ".folo.is", Path: "/"},
		{Name: "exact", Value: "1", Domain: "api.folo.is"},
		{Name: "other-domain", Value: "x", Domain: "example.com"},
		{Name: "expired", Value: "x", Domain: ".folo.is", Expires: floatPtr(float64(testNow.Add(-time.Hour).Unix()))},
		{Name: "future", Value: "ok", Domain: ".folo.is", Expires: floatPtr(float64(testNow.Add(time.Hour).Unix()))},
		{Name: "forever", Value: "ok", Domain: ".folo.is", Expires: floatPtr(-1)},
		{Name: "wrong-path", Value: "x", Domain: ".folo.is", Path: "/admin"},
		{Name: "", Value: "nameless", Domain: ".folo.is"},
	}}

	header, err := state.CookieHeader("https://api.folo.is/entries", testNow)
	if err != nil {
		t.Fatalf("CookieHeader failed: %v", err)
	}

	want := "session=abc; exact=1; future=ok; forever=ok"
	if header != want {
		t.Errorf("header = %q, want %q", header, want)
	}
}

func TestCookieHeader_SubdomainSuffixMatch(t *testing.T) {
	state := &StorageState{Cookies: []Cookie{
		{Name: "parent", Value: "1", Domain: "folo.is"},
		// "olo.is" must not match "folo.is" just by string suffix.
		{Name: "lookalike", Value: "x", Domain: "olo.is"},
	}}

	header, err := state.CookieHeader("https://api.folo.is/entries", testNow)
	if err != nil {
		t.Fatalf("CookieHeader failed: %v", err)
	}

	if header != "parent=1" {
		t.Errorf("header = %q, want %q", header, "parent=1")
	}
}

func TestCookieHeader_NoMatches(t *testing.T) {
	state := &StorageState{Cookies: []Cookie{
		{Name: "foreign", Value: "1", Domain: "example.com"},
	}}

	if _, err := state.CookieHeader("https://api.folo.is/entries", testNow); !errors.Is(err, ErrNoMatchingCookies) {
		t.Fatalf("err = %v, want ErrNoMatchingCookies", err)
	}
}

func TestResolver_Precedence(t *testing.T) {
	statePath := writeState(t, `{"cookies": [{"name": "from", "value": "state", "domain": ".folo.is"}]}`)

	t.Setenv("FOLO_COOKIE_TEST", "from=env")

	r := Resolver{Explicit: "from=flag", EnvVar: "FOLO_COOKIE_TEST", StatePath: statePath}

	got, err := r.Resolve("https://api.folo.is/entries", testNow)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if got != "from=flag" {
		t.Errorf("explicit should win, got %q", got)
	}

	r.Explicit = ""

	if got, _ = r.Resolve("https://api.folo.is/entries", testNow); got != "from=env" {
		t.Errorf("env should win over state, got %q", got)
	}

	t.Setenv("FOLO_COOKIE_TEST", "")

	if got, _ = r.Resolve("https://api.folo.is/entries", testNow); got != "from=state" {
		t.Errorf("state should be the fallback, got %q", got)
	}
}

func TestResolver_NoSources(t *testing.T) {
	r := Resolver{}

	if _, err := r.Resolve("https://api.folo.is/entries", testNow); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

func TestIsCredentialError(t *testing.T) {
	for _, err := range []error{ErrNoCredential, ErrSnapshotNotFound, ErrSnapshotMalformed, ErrNoMatchingCookies} {
		if !IsCredentialError(err) {
			t.Errorf("IsCredentialError(%v) = false, want true", err)
		}
	}

	if IsCredentialError(errors.New("boom")) {
		t.Error("IsCredentialError should reject unrelated errors")
	}
}
