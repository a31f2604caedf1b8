// Package session resolves a usable cookie credential for API calls from
// an explicit override, the environment, or a saved browser storage state.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Credential resolution errors.
var (
	ErrNoCredential      = errors.New("no usable credential found")
	ErrSnapshotNotFound  = errors.New("storage state not found")
	ErrSnapshotMalformed = errors.New("invalid storage state file (cookies missing)")
	ErrNoMatchingCookies = errors.New("no matching cookies found in storage state")
)

// Cookie is one entry of a browser storage-state snapshot.
type Cookie struct {
	Name   string   `json:"name"`
	Value  string   `json:"value"`
	Domain string   `json:"domain"`
	Path   string   `json:"path,omitempty"`
	// Expires is epoch seconds; -1 or absence means a session cookie that
	// never expires via this field.
	Expires *float64 `json:"expires,omitempty"`
}

// StorageState is the cookie snapshot saved by the login flow.
type StorageState struct {
	Cookies []Cookie `json:"cookies"`
}

// LoadStorageState reads and parses a storage-state snapshot.
func LoadStorageState(path string) (*StorageState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}

		return nil, fmt.Errorf("failed to read storage state: %w", err)
	}

	// The cookies key must be present and be a list; a snapshot without it
	// is malformed rather than empty.
	var probe struct {
		Cookies *[]Cookie `json:"cookies"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMalformed, path)
	}

	if probe.Cookies == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMalformed, path)
	}

	return &StorageState{Cookies: *probe.Cookies}, nil
}

// CookieHeader filters the snapshot's cookies against the target URL and
// joins the survivors into a Cookie header value, preserving order.
func (s *StorageState) CookieHeader(target string, now time.Time) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target URL: %w", err)
	}

	requestPath := u.Path
	if requestPath == "" {
		requestPath = "/"
	}

	nowSec := now.Unix()

	matched := lo.Filter(s.Cookies, func(c Cookie, _ int) bool {
		if c.Name == "" {
			return false
		}

		if !domainMatches(c.Domain, u.Hostname()) {
			return false
		}

		if !pathMatches(c.Path, requestPath) {
			return false
		}

		if c.Expires != nil && *c.Expires != -1 && int64(*c.Expires) <= nowSec {
			return false
		}

		return true
	})

	if len(matched) == 0 {
		return "", ErrNoMatchingCookies
	}

	pairs := lo.Map(matched, func(c Cookie, _ int) string {
		return c.Name + "=" + c.Value
	})

	return strings.Join(pairs, "; "), nil
}

// domainMatches reports whether a cookie domain covers the hostname,
// either exactly or as a parent domain.
func domainMatches(cookieDomain, hostname string) bool {
	if cookieDomain == "" {
		return false
	}

	domain := strings.TrimPrefix(cookieDomain, ".")

	return hostname == domain || strings.HasSuffix(hostname, "."+domain)
}

func pathMatches(cookiePath, requestPath string) bool {
	if cookiePath == "" {
		cookiePath = "/"
	}

	return strings.HasPrefix(requestPath, cookiePath)
}

// Resolver produces a cookie header for API requests. Precedence is
// strictly: explicit override, environment variable, storage-state file.
type Resolver struct {
	Explicit  string
	EnvVar    string
	StatePath string
}

// Resolve returns the credential string, or an error describing which
// source failed. Snapshot errors are only reachable when neither override
// is set.
func (r Resolver) Resolve(target string, now time.Time) (string, error) {
	if r.Explicit != "" {
		return r.Explicit, nil
	}

	if r.EnvVar != "" {
		if env := os.Getenv(r.EnvVar); env != "" {
			return env, nil
		}
	}

	if r.StatePath == "" {
		return "", ErrNoCredential
	}

	state, err := LoadStorageState(r.StatePath)
	if err != nil {
		return "", err
	}

	header, err := state.CookieHeader(target, now)
	if err != nil {
		return "", err
	}

	return header, nil
}

// IsCredentialError reports whether err belongs to the credential
// resolution taxonomy, as opposed to a network or export failure.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrSnapshotNotFound) ||
		errors.Is(err, ErrSnapshotMalformed) ||
		errors.Is(err, ErrNoMatchingCookies)
}
