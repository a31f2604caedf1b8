// Package folo implements the HTTP client for the feed service's private
// API: unread-entry pagination, auth probing, and raw endpoint posts used
// by the mark-as-read prober.
package folo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// StatusError reports a non-success HTTP response from the API.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Status)
}

// Client talks to the entries API on behalf of one credential.
type Client struct {
	baseURL      string
	cookieHeader string
	httpClient   *http.Client
}

// NewClient creates a client for the given API base and cookie credential.
func NewClient(baseURL, cookieHeader string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		cookieHeader: cookieHeader,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the configured API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Entries requests one page of entries. A non-success HTTP status is
// returned as *StatusError; a missing or empty data list yields an empty
// slice, never an error.
func (c *Client) Entries(ctx context.Context, reqBody EntriesRequest) ([]RawEntry, error) {
	body, status, err := c.post(ctx, c.baseURL+"/entries", reqBody)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		return nil, &StatusError{Status: status}
	}

	var envelope EntriesResponse
	if len(body) > 0 {
		// A non-JSON success body is treated as an empty page rather than
		// a failure; the upstream contract is not firm enough to insist.
		_ = json.Unmarshal(body, &envelope)
	}

	return envelope.Data, nil
}

// AuthStatus is the outcome of a credential probe.
type AuthStatus struct {
	OK      bool
	Status  int
	Samples int
}

// CheckAuth issues a minimal entries probe and reports whether the
// credential is accepted, the HTTP status observed, and how many sample
// entries came back.
func (c *Client) CheckAuth(ctx context.Context) (AuthStatus, error) {
	probe := EntriesRequest{Limit: 1, View: -1}

	body, status, err := c.post(ctx, c.baseURL+"/entries", probe)
	if err != nil {
		return AuthStatus{}, err
	}

	result := AuthStatus{
		OK:     status >= 200 && status < 300,
		Status: status,
	}

	if result.OK && len(body) > 0 {
		var envelope EntriesResponse
		_ = json.Unmarshal(body, &envelope)
		result.Samples = len(envelope.Data)
	}

	return result, nil
}

// Post sends a JSON body to an arbitrary URL with the client's credential
// attached and returns the HTTP status. Used for capability probing
// against candidate endpoints that may live on other hosts.
func (c *Client) Post(ctx context.Context, url string, body any) (int, error) {
	_, status, err := c.post(ctx, url, body)

	return status, err
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.cookieHeader != "" {
		req.Header.Set("Cookie", c.cookieHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}
