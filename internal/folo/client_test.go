package folo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

func TestClient_Entries(t *testing.T) {
	var gotBody EntriesRequest

	var gotCookie string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		_ = json.NewEncoder(w).Encode(EntriesResponse{Data: []RawEntry{
			{Entries: &RawEntryFields{ID: "e1", Title: "one"}},
			{Entries: &RawEntryFields{ID: "e2", Title: "two"}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "session=abc", 5*time.Second)

	entries, err := client.Entries(context.Background(), EntriesRequest{
		Limit:          100,
		View:           -1,
		Read:           boolPtr(false),
		PublishedAfter: "2024-06-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	if gotCookie != "session=abc" {
		t.Errorf("Cookie header = %q, want session=abc", gotCookie)
	}

	if gotBody.Limit != 100 || gotBody.View != -1 {
		t.Errorf("body = %+v, want limit 100 view -1", gotBody)
	}

	if gotBody.Read == nil || *gotBody.Read {
		t.Error("read: false must be serialized, not omitted")
	}

	if gotBody.PublishedAfter != "2024-06-01T10:00:00Z" {
		t.Errorf("publishedAfter = %q", gotBody.PublishedAfter)
	}
}

func TestClient_Entries_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)

	_, err := client.Entries(context.Background(), EntriesRequest{Limit: 1, View: -1})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}

	if statusErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", statusErr.Status)
	}
}

func TestClient_Entries_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)

	entries, err := client.Entries(context.Background(), EntriesRequest{Limit: 1, View: -1})
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0 for empty body", len(entries))
	}
}

func TestClient_CheckAuth(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantOK      bool
		wantSamples int
	}{
		{"accepted", http.StatusOK, `{"data": [{"entries": {"id": "e1"}}]}`, true, 1},
		{"accepted empty", http.StatusOK, `{"data": []}`, true, 0},
		{"rejected", http.StatusUnauthorized, "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body EntriesRequest
				_ = json.NewDecoder(r.Body).Decode(&body)

				// The probe must not filter by read state.
				if body.Read != nil {
					t.Error("auth probe must omit the read field")
				}

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "", time.Second)

			auth, err := client.CheckAuth(context.Background())
			if err != nil {
				t.Fatalf("CheckAuth failed: %v", err)
			}

			if auth.OK != tt.wantOK || auth.Status != tt.status || auth.Samples != tt.wantSamples {
				t.Errorf("CheckAuth = %+v, want ok=%v status=%d samples=%d", auth, tt.wantOK, tt.status, tt.wantSamples)
			}
		})
	}
}

func TestClient_Post_ReturnsStatusWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)

	status, err := client.Post(context.Background(), server.URL+"/reads", map[string]any{"entryIds": []string{"a"}})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Entries(ctx, EntriesRequest{Limit: 1, View: -1}); err == nil {
		t.Fatal("Entries should fail on cancelled context")
	}
}
