// Package models defines data structures shared across the exporter.
package models

import "time"

// Article is the normalized unit produced by one fetch run.
//
// Timestamps are kept as the raw strings the API returned; they are used
// as pagination cursors and display values only and are never assumed to
// parse into a valid date.
type Article struct {
	ID          *string `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	PublishedAt string  `json:"publishedAt"`
	InsertedAt  string  `json:"insertedAt"`
	Summary     string  `json:"summary"`
	FeedTitle   string  `json:"feedTitle"`
	Category    string  `json:"category"`
}

// PublishedTime parses the publish timestamp. The second return value is
// false when the field is absent or unparseable.
func (a Article) PublishedTime() (time.Time, bool) {
	return parseTimestamp(a.PublishedAt)
}

func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
