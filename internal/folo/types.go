package folo

// EntriesRequest is the body of POST /entries. View -1 selects all views;
// Read=false restricts to unread entries. At most one cursor field is set
// per request, matching the configured pagination contract.
type EntriesRequest struct {
	Limit           int    `json:"limit"`
	View            int    `json:"view"`
	Read            *bool  `json:"read,omitempty"`
	PublishedAfter  string `json:"publishedAfter,omitempty"`
	PublishedBefore string `json:"publishedBefore,omitempty"`
	InsertedBefore  string `json:"insertedBefore,omitempty"`
}

// EntriesResponse is the envelope of POST /entries.
type EntriesResponse struct {
	Data []RawEntry `json:"data"`
}

// RawEntry is one record of the entries response. Every nested object is
// optional; the normalizer tolerates total absence of any of them.
type RawEntry struct {
	Entries       *RawEntryFields  `json:"entries"`
	Feeds         *RawFeedFields   `json:"feeds"`
	Subscriptions *RawSubscription `json:"subscriptions"`
}

// RawEntryFields holds the entry-level fields of a raw record.
type RawEntryFields struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	InsertedAt  string `json:"insertedAt"`
	Summary     string `json:"summary"`
}

// RawFeedFields holds the feed-level fields of a raw record.
type RawFeedFields struct {
	Title string `json:"title"`
}

// RawSubscription holds the subscription-level fields of a raw record.
type RawSubscription struct {
	Category string `json:"category"`
}

// PublishedAt returns the raw publish timestamp, or "" when absent.
func (e RawEntry) PublishedAt() string {
	if e.Entries == nil {
		return ""
	}

	return e.Entries.PublishedAt
}

// InsertedAt returns the raw insert timestamp, or "" when absent.
func (e RawEntry) InsertedAt() string {
	if e.Entries == nil {
		return ""
	}

	return e.Entries.InsertedAt
}
