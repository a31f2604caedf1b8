// Package fetcher drives cursor-based pagination over the unread entries
// API with duplicate detection and multiple independent stop conditions.
package fetcher

import (
	"context"
	"fmt"

	"foloexport/internal/config"
	"foloexport/internal/folo"
	"foloexport/internal/logger"
	"foloexport/internal/models"

	"github.com/tomakado/containers/set"
)

// EntrySource issues one page request against the upstream API.
type EntrySource interface {
	Entries(ctx context.Context, req folo.EntriesRequest) ([]folo.RawEntry, error)
}

// Result is the outcome of one pagination run. Truncated is set when the
// run hit the request ceiling and results may therefore be incomplete;
// this is a successful outcome, not an error.
type Result struct {
	Articles  []models.Article
	Requests  int
	Truncated bool
}

// Fetcher accumulates unread articles across pages. One run owns its
// cursor and seen-ID set exclusively; the Fetcher itself is stateless
// between runs, so callers wanting concurrency create one run at a time
// per credential.
type Fetcher struct {
	source      EntrySource
	cursorField string
	batchSize   int
	maxRequests int
	log         *logger.Logger
}

// New creates a fetcher. cursorField is one of the config.Cursor*
// constants; batchSize is clamped to the server's maximum page size.
func New(source EntrySource, cursorField string, batchSize, maxRequests int, log *logger.Logger) *Fetcher {
	if batchSize < 1 || batchSize > config.APIMaxLimit {
		batchSize = config.APIMaxLimit
	}

	if maxRequests < 1 {
		maxRequests = 50
	}

	return &Fetcher{
		source:      source,
		cursorField: cursorField,
		batchSize:   batchSize,
		maxRequests: maxRequests,
		log:         log,
	}
}

// FetchAllUnread runs the pagination loop to completion. The loop stops on
// the first of: empty page, page with no new rows (stall), short page,
// request ceiling, context cancellation, or a failed page request. A
// failed request discards everything accumulated so far.
//
// The upstream pagination contract is not firm enough to loop on a
// "has more" signal alone, so every termination condition stands on its
// own; stall detection in particular guards against a cursor field the
// server silently ignores.
func (f *Fetcher) FetchAllUnread(ctx context.Context) (*Result, error) {
	result := &Result{Articles: []models.Article{}}

	seenIDs := set.New[string]()

	cursor := ""

	for {
		if result.Requests >= f.maxRequests {
			result.Truncated = true

			f.log.Warn("request ceiling reached, results may be incomplete",
				"requests", result.Requests, "articles", len(result.Articles))

			return result, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := f.source.Entries(ctx, f.buildRequest(cursor))
		if err != nil {
			return nil, fmt.Errorf("page request failed: %w", err)
		}

		result.Requests++

		if len(entries) == 0 {
			return result, nil
		}

		newCount := 0

		for _, raw := range entries {
			article := folo.Normalize(raw)

			if article.ID != nil {
				if seenIDs.Contains(*article.ID) {
					continue
				}

				seenIDs.Add(*article.ID)
			}

			result.Articles = append(result.Articles, article)
			newCount++
		}

		f.log.Debug("fetched page",
			"request", result.Requests, "entries", len(entries), "new", newCount)

		// Stall: a page of nothing but duplicates means the cursor is not
		// pruning the server-side result set.
		if newCount == 0 {
			f.log.Warn("pagination stalled on duplicate page, stopping",
				"requests", result.Requests)

			return result, nil
		}

		// Advance the cursor only when the last raw entry carries a usable
		// timestamp; otherwise the next page repeats and stall detection
		// ends the run.
		if next := f.cursorValue(entries[len(entries)-1]); next != "" {
			cursor = next
		}

		// A short page means the server has no more data.
		if len(entries) < config.APIMaxLimit {
			return result, nil
		}
	}
}

func (f *Fetcher) buildRequest(cursor string) folo.EntriesRequest {
	unread := false

	req := folo.EntriesRequest{
		Limit: f.batchSize,
		View:  -1,
		Read:  &unread,
	}

	if cursor == "" {
		return req
	}

	switch f.cursorField {
	case config.CursorPublishedBefore:
		req.PublishedBefore = cursor
	case config.CursorInsertedBefore:
		req.InsertedBefore = cursor
	default:
		req.PublishedAfter = cursor
	}

	return req
}

func (f *Fetcher) cursorValue(last folo.RawEntry) string {
	if f.cursorField == config.CursorInsertedBefore {
		return last.InsertedAt()
	}

	return last.PublishedAt()
}
