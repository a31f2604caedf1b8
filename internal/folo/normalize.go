package folo

import "foloexport/internal/models"

// Defaults applied when a raw record lacks a field.
const (
	DefaultTitle    = "Untitled"
	DefaultFeed     = "Unknown"
	DefaultCategory = "Uncategorized"
)

// Normalize maps a raw nested API record into a flat Article. It never
// fails: absent or malformed nested objects degrade to defaults. An empty
// entry ID yields a nil ID, which excludes the article from deduplication
// and mark-as-read but keeps it exportable.
func Normalize(raw RawEntry) models.Article {
	article := models.Article{
		Title:     DefaultTitle,
		FeedTitle: DefaultFeed,
		Category:  DefaultCategory,
	}

	if e := raw.Entries; e != nil {
		if e.ID != "" {
			id := e.ID
			article.ID = &id
		}

		if e.Title != "" {
			article.Title = e.Title
		}

		article.URL = e.URL
		article.PublishedAt = e.PublishedAt
		article.InsertedAt = e.InsertedAt
		article.Summary = e.Summary
	}

	if f := raw.Feeds; f != nil && f.Title != "" {
		article.FeedTitle = f.Title
	}

	if s := raw.Subscriptions; s != nil && s.Category != "" {
		article.Category = s.Category
	}

	return article
}
