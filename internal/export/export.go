// Package export renders a collected article set as JSON or Markdown.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"foloexport/internal/models"

	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
)

// Markdown formats.
const (
	FormatJSON    = "json"
	FormatList    = "list"
	FormatGrouped = "grouped"
)

// isoLayout matches the upstream export consumers (millisecond UTC).
const isoLayout = "2006-01-02T15:04:05.000Z"

// displayLayout is the human-readable timestamp form.
const displayLayout = "2006-01-02 15:04:05"

// Document is the stable JSON export shape. Field names are a
// cross-surface compatibility contract shared with the browser extension
// and must not change.
type Document struct {
	ExportTime          string           `json:"exportTime"`
	ExportTimeFormatted string           `json:"exportTimeFormatted"`
	Total               int              `json:"total"`
	Articles            []models.Article `json:"articles"`
}

// GenerateJSON renders the article set as the export document.
func GenerateJSON(articles []models.Article, now time.Time) ([]byte, error) {
	doc := Document{
		ExportTime:          now.UTC().Format(isoLayout),
		ExportTimeFormatted: now.Format(displayLayout),
		Total:               len(articles),
		Articles:            articles,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}

	return data, nil
}

// ParseJSON is the inverse of GenerateJSON, for downstream consumers of
// the export document.
func ParseJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	return &doc, nil
}

// GenerateMarkdown renders the article set as Markdown. format is
// FormatList (flat, newest first) or FormatGrouped (partitioned by
// category, largest group first).
func GenerateMarkdown(articles []models.Article, format string, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Folo Unread Articles Export\n")
	sb.WriteString("Export time: " + now.Format(displayLayout) + "\n")
	fmt.Fprintf(&sb, "Total: %d articles\n\n", len(articles))
	sb.WriteString("---\n\n")

	if format == FormatGrouped {
		for _, group := range groupByCategory(articles) {
			fmt.Fprintf(&sb, "## %s (%d)\n\n", group.category, len(group.articles))

			for _, article := range group.articles {
				writeArticle(&sb, article)
			}

			sb.WriteString("---\n\n")
		}

		return sb.String()
	}

	for _, article := range sortByPublishedDesc(articles) {
		writeArticle(&sb, article)
	}

	return sb.String()
}

func writeArticle(sb *strings.Builder, article models.Article) {
	sb.WriteString("### " + article.Title + "\n")
	sb.WriteString("- Source: " + article.FeedTitle + "\n")
	sb.WriteString("- Time: " + formatDate(article.PublishedAt) + "\n")
	sb.WriteString("- Link: " + article.URL + "\n")

	if article.Summary != "" {
		sb.WriteString("- Summary: " + article.Summary + "\n")
	}

	sb.WriteString("\n")
}

// formatDate renders a raw timestamp for display. Absent values become
// "Unknown"; unparseable values pass through verbatim rather than error.
func formatDate(value string) string {
	if value == "" {
		return "Unknown"
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, value); err != nil {
			return value
		}
	}

	return t.Format(displayLayout)
}

// sortByPublishedDesc returns a copy sorted newest first. Articles with a
// missing or unparseable publish time sort as oldest.
func sortByPublishedDesc(articles []models.Article) []models.Article {
	sorted := make([]models.Article, len(articles))
	copy(sorted, articles)

	sort.SliceStable(sorted, func(i, j int) bool {
		ti, _ := sorted[i].PublishedTime()
		tj, _ := sorted[j].PublishedTime()

		return ti.After(tj)
	})

	return sorted
}

type categoryGroup struct {
	category string
	articles []models.Article
}

// groupByCategory partitions articles by category, ordering groups by
// descending size with ties broken by first-encountered order. Within a
// group, accumulation order is preserved.
func groupByCategory(articles []models.Article) []categoryGroup {
	index := map[string]int{}

	var groups []categoryGroup

	for _, article := range articles {
		i, ok := index[article.Category]
		if !ok {
			i = len(groups)
			index[article.Category] = i
			groups = append(groups, categoryGroup{category: article.Category})
		}

		groups[i].articles = append(groups[i].articles, article)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].articles) > len(groups[j].articles)
	})

	return groups
}

// CategoryTable renders a display-width-aligned category breakdown for
// terminal output, largest category first.
func CategoryTable(articles []models.Article) string {
	groups := groupByCategory(articles)
	if len(groups) == 0 {
		return ""
	}

	nameWidth := lo.Max(lo.Map(groups, func(g categoryGroup, _ int) int {
		return runewidth.StringWidth(g.category)
	}))

	var sb strings.Builder

	for _, g := range groups {
		pad := nameWidth - runewidth.StringWidth(g.category)
		fmt.Fprintf(&sb, "%s%s  %d\n", g.category, strings.Repeat(" ", pad), len(g.articles))
	}

	return sb.String()
}
