// Package reconcile submits collected article IDs to the service's
// mark-as-read endpoint. The endpoint contract is unstable across
// deployments, so an ordered list of candidate endpoints is probed once
// each and the first success wins.
package reconcile

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"foloexport/internal/logger"

	"github.com/samber/lo"
	"github.com/tomakado/containers/set"
)

// Reconciliation errors.
var (
	// ErrEndpointUnavailable means every candidate answered "not found":
	// the feature is not exposed for this account or deployment.
	ErrEndpointUnavailable = errors.New("mark-as-read endpoint not available")
	// ErrReconcileFailed covers every other mix of candidate failures.
	ErrReconcileFailed = errors.New("failed to mark articles as read")
)

// Poster submits one JSON request with the session credential attached.
type Poster interface {
	Post(ctx context.Context, url string, body any) (int, error)
}

// CacheClearer invalidates the cached unread snapshot, which is stale by
// construction once articles have been marked read.
type CacheClearer interface {
	Clear(ctx context.Context) error
}

// Candidate describes one mark-as-read endpoint guess.
type Candidate struct {
	BaseURL string
	Path    string
	Legacy  bool
}

// URL returns the full candidate URL.
func (c Candidate) URL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.Path
}

// body returns the request body for this candidate's shape.
func (c Candidate) body(ids []string) any {
	if c.Legacy {
		return map[string]any{"entryIds": ids}
	}

	return map[string]any{"entryIds": ids, "isInbox": false}
}

// Result reports what one MarkRead call actually submitted.
type Result struct {
	Count     int
	Submitted []string
}

// Reconciler holds the session-scoped marked-read set. The set is
// append-only: an ID submitted once, even across retries, is never
// resubmitted within the session.
type Reconciler struct {
	poster     Poster
	candidates []Candidate
	cache      CacheClearer
	marked     set.HashSet[string]
	log        *logger.Logger
}

// New creates a reconciler. cache may be nil when no snapshot cache is in
// play (the auth-check path, tests).
func New(poster Poster, candidates []Candidate, cache CacheClearer, log *logger.Logger) *Reconciler {
	return &Reconciler{
		poster:     poster,
		candidates: candidates,
		cache:      cache,
		marked:     set.New[string](),
		log:        log,
	}
}

// MarkRead marks the given article IDs as read server-side. IDs already
// acknowledged this session are filtered out first; an empty remainder is
// a trivial success with count zero, distinct from failure.
func (r *Reconciler) MarkRead(ctx context.Context, ids []string) (*Result, error) {
	pending := lo.Filter(lo.Uniq(ids), func(id string, _ int) bool {
		return id != "" && !r.marked.Contains(id)
	})

	if len(pending) == 0 {
		return &Result{Count: 0, Submitted: []string{}}, nil
	}

	// Capability probe: each candidate is tried at most once, no backoff.
	sawNonNotFound := false

	succeeded := false

	for _, candidate := range r.candidates {
		status, err := r.poster.Post(ctx, candidate.URL(), candidate.body(pending))
		if err != nil {
			sawNonNotFound = true

			r.log.Debug("mark-as-read candidate errored", "url", candidate.URL(), "error", err)

			continue
		}

		if status >= 200 && status < 300 {
			succeeded = true

			r.log.Debug("mark-as-read candidate accepted", "url", candidate.URL(), "status", status)

			break
		}

		if status != http.StatusNotFound {
			sawNonNotFound = true
		}

		r.log.Debug("mark-as-read candidate rejected", "url", candidate.URL(), "status", status)
	}

	if !succeeded {
		if sawNonNotFound {
			return nil, ErrReconcileFailed
		}

		return nil, ErrEndpointUnavailable
	}

	for _, id := range pending {
		r.marked.Add(id)
	}

	if r.cache != nil {
		if err := r.cache.Clear(ctx); err != nil {
			// The server state is already updated; a cache clear failure
			// must not be reported as a reconcile failure.
			r.log.Warn("failed to clear snapshot cache", "error", err)
		}
	}

	return &Result{Count: len(pending), Submitted: pending}, nil
}

// Reset drops the session's marked-read record. Called when a fresh fetch
// begins or the cache is fully reset.
func (r *Reconciler) Reset() {
	r.marked = set.New[string]()
}
