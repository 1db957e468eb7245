// Package source reads the most recent rows of the remote "articles" resource.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"ai-newsletter/internal/apperr"
	"ai-newsletter/internal/model"
	"ai-newsletter/internal/timefmt"
)

// DefaultLimit is how many rows the dashboard asks for.
const DefaultLimit = 100

// Source returns up to limit rows ordered by scraped_at descending.
// A failed query returns an error; an empty table returns no rows and no error.
type Source interface {
	Recent(ctx context.Context, limit int) ([]model.RawArticle, error)
}

// Writer upserts rows keyed by url. Used by the upload pipeline.
type Writer interface {
	Upsert(ctx context.Context, rows []model.RawArticle) (int, error)
}

const (
	KindPostgREST = "postgrest"
	KindPostgres  = "postgres"
	KindRSS       = "rss"
	KindFile      = "file"
)

// Static serves a fixed set of rows.
type Static struct {
	Rows []model.RawArticle
	Err  error
}

func (s *Static) Recent(_ context.Context, limit int) ([]model.RawArticle, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	rows := append([]model.RawArticle(nil), s.Rows...)
	SortByRecency(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// NewFile loads a JSON array of rows, as exported from the articles table.
func NewFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var rows []model.RawArticle
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &Static{Rows: rows}, nil
}

// FileSource re-reads its file on every call so edits show up on reload.
type FileSource struct {
	Path string
}

func (f *FileSource) Recent(ctx context.Context, limit int) ([]model.RawArticle, error) {
	s, err := NewFile(f.Path)
	if err != nil {
		return nil, apperr.NewFetch("File error", err)
	}
	return s.Recent(ctx, limit)
}

// SortByRecency orders rows by scraped_at descending, falling back to
// published_at. Equal scraped_at values are ordered by published_at, so rows
// fetched in one pass interleave by publication. Rows with neither sort last;
// remaining ties keep their input order.
func SortByRecency(rows []model.RawArticle) {
	const missing = -1 << 62
	unix := func(t *time.Time) int64 {
		if t == nil {
			return missing
		}
		return t.UnixNano()
	}
	primary := func(r model.RawArticle) int64 {
		t := timefmt.ParseTimestampPtr(r.ScrapedAt)
		if t == nil {
			t = timefmt.ParseTimestampPtr(r.PublishedAt)
		}
		return unix(t)
	}
	published := func(r model.RawArticle) int64 {
		return unix(timefmt.ParseTimestampPtr(r.PublishedAt))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := primary(rows[i]), primary(rows[j])
		if pi != pj {
			return pi > pj
		}
		return published(rows[i]) > published(rows[j])
	})
}
