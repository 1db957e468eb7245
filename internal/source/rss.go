package source

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-newsletter/internal/apperr"
	"ai-newsletter/internal/model"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// Feed is one newsletter feed; Name becomes the article's source tag.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// RSS reads newsletters directly from their feeds, bypassing the database.
type RSS struct {
	feeds  []Feed
	parser *gofeed.Parser
	logger *zap.Logger
	now    func() time.Time
}

func NewRSS(feeds []Feed, logger *zap.Logger) *RSS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RSS{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		logger: logger,
		now:    time.Now,
	}
}

// Recent fetches every feed. It fails only when no feed could be read.
func (r *RSS) Recent(ctx context.Context, limit int) ([]model.RawArticle, error) {
	if len(r.feeds) == 0 {
		return nil, apperr.NewFetch("Feed error", errors.New("no feeds configured"))
	}

	scraped := r.now().UTC().Format(time.RFC3339)
	var (
		rows []model.RawArticle
		errs []error
	)
	for _, f := range r.feeds {
		feed, err := r.parser.ParseURLWithContext(f.URL, ctx)
		if err != nil {
			r.logger.Warn("Feed fetch failed", zap.String("feed", f.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("fetching %s: %w", f.Name, err))
			continue
		}
		rows = append(rows, itemsToRows(f.Name, feed.Items, scraped)...)
	}
	if len(errs) == len(r.feeds) {
		return nil, apperr.NewFetch("Feed error", errors.Join(errs...))
	}

	SortByRecency(rows)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func itemsToRows(source string, items []*gofeed.Item, scraped string) []model.RawArticle {
	rows := make([]model.RawArticle, 0, len(items))
	for _, item := range items {
		if item.Link == "" {
			continue
		}
		row := model.RawArticle{
			ArticleID: articleID(item.Link),
			Title:     strings.TrimSpace(item.Title),
			URL:       item.Link,
			Source:    source,
			ScrapedAt: &scraped,
		}
		if row.Title == "" {
			row.Title = "Untitled"
		}
		if desc := stripHTML(item.Description); desc != "" {
			row.Description = &desc
		}
		if item.PublishedParsed != nil {
			p := item.PublishedParsed.UTC().Format(time.RFC3339)
			row.PublishedAt = &p
		} else if item.UpdatedParsed != nil {
			p := item.UpdatedParsed.UTC().Format(time.RFC3339)
			row.PublishedAt = &p
		}
		if item.Image != nil && item.Image.URL != "" {
			img := item.Image.URL
			row.ImageURL = &img
		}
		if len(item.Categories) > 0 {
			c := item.Categories[0]
			row.Category = &c
		}
		rows = append(rows, row)
	}
	return rows
}

// articleID derives a stable id from the link so favorites survive refetches.
func articleID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:16])
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
