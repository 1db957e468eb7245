package model

import (
	"time"
)

// Known upstream newsletters. Any other source value is still accepted and
// treated as an opaque filter key.
const (
	SourceBensBites = "bens_bites"
	SourceAIRundown = "ai_rundown"

	// FilterAll is the source filter sentinel that matches every article.
	FilterAll = "all"
)

// KnownSources lists the newsletters the dashboard ships filter buttons for.
var KnownSources = []string{SourceBensBites, SourceAIRundown}

// SourceLabel returns the display name for a source tag.
func SourceLabel(source string) string {
	switch source {
	case SourceBensBites:
		return "Ben's Bites"
	case SourceAIRundown:
		return "The AI Rundown"
	case FilterAll:
		return "All"
	case "":
		return "Unknown"
	default:
		return source
	}
}

// RawArticle is one row of the remote "articles" resource.
type RawArticle struct {
	ArticleID   string  `json:"article_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	PublishedAt *string `json:"published_at"`
	ScrapedAt   *string `json:"scraped_at"`
	ImageURL    *string `json:"image_url"`
	Category    *string `json:"category"`
	Source      string  `json:"source"`
}

// Article is the dashboard's in-memory view of a remote row. Everything except
// Saved and SavedAt is immutable after load.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ScrapedAt   *time.Time `json:"scrapedAt,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Category    string     `json:"category,omitempty"`
	Source      string     `json:"source"`
	Saved       bool       `json:"saved"`
	SavedAt     *time.Time `json:"savedAt,omitempty"`
}

// DisplayTime is the timestamp shown on a card: publishedAt, else scrapedAt.
func (a Article) DisplayTime() *time.Time {
	if a.PublishedAt != nil {
		return a.PublishedAt
	}
	return a.ScrapedAt
}

// RecencyTime is the timestamp used for "last updated": scrapedAt, else publishedAt.
func (a Article) RecencyTime() *time.Time {
	if a.ScrapedAt != nil {
		return a.ScrapedAt
	}
	return a.PublishedAt
}

// FilterState is the (source, saved-only) pair selecting the visible articles.
type FilterState struct {
	Source    string `json:"source"`
	SavedOnly bool   `json:"savedOnly"`
}

// DefaultFilter shows every article.
func DefaultFilter() FilterState {
	return FilterState{Source: FilterAll}
}

// Matches reports whether a passes both predicates.
func (f FilterState) Matches(a Article) bool {
	if f.Source != FilterAll && a.Source != f.Source {
		return false
	}
	if f.SavedOnly && !a.Saved {
		return false
	}
	return true
}

// ArticleView is an Article prepared for a renderer.
type ArticleView struct {
	Article
	SourceLabel string `json:"sourceLabel"`
	TimeAgo     string `json:"timeAgo"`
}
