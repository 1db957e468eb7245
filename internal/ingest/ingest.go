// Package ingest turns scraper output into article rows and upserts them.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"ai-newsletter/internal/model"
	"ai-newsletter/internal/source"
	"ai-newsletter/internal/timefmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWindow is how far back the recency filter keeps articles.
const DefaultWindow = 24 * time.Hour

// Scraped is one article as the scrapers write it.
type Scraped struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	Source      string  `json:"source"`
	PublishedAt *string `json:"publishedAt"`
	ScrapedAt   *string `json:"scrapedAt"`
	ImageURL    *string `json:"imageUrl"`
	Category    *string `json:"category"`
}

// Envelope is one scraper run: a source tag, a timestamp and its articles.
type Envelope struct {
	Source    string    `json:"source"`
	ScrapedAt string    `json:"scrapedAt"`
	Articles  []Scraped `json:"articles"`
}

// Decode accepts a flat array of articles, an array of envelopes, or a
// single envelope.
func Decode(data []byte, now time.Time) ([]Scraped, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}

	if data[0] == '{' {
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("parsing envelope: %w", err)
		}
		return Combine([]Envelope{env}, now), nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing articles: %w", err)
	}
	if len(raw) == 0 {
		return []Scraped{}, nil
	}

	var head struct {
		Articles json.RawMessage `json:"articles"`
	}
	if err := json.Unmarshal(raw[0], &head); err == nil && head.Articles != nil {
		var envs []Envelope
		if err := json.Unmarshal(data, &envs); err != nil {
			return nil, fmt.Errorf("parsing envelopes: %w", err)
		}
		return Combine(envs, now), nil
	}

	var items []Scraped
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing articles: %w", err)
	}
	return items, nil
}

// Combine flattens envelopes, stamping each article with its envelope's
// source and scrape time unless it carries its own.
func Combine(envs []Envelope, now time.Time) []Scraped {
	var out []Scraped
	for _, env := range envs {
		src := env.Source
		if src == "" {
			src = "unknown"
		}
		scraped := env.ScrapedAt
		if scraped == "" {
			scraped = now.UTC().Format(time.RFC3339)
		}
		for _, a := range env.Articles {
			if a.Source == "" {
				a.Source = src
			}
			if a.ScrapedAt == nil {
				s := scraped
				a.ScrapedAt = &s
			}
			out = append(out, a)
		}
	}
	return out
}

// Dedupe drops articles without a URL and repeats of a URL already seen.
func Dedupe(items []Scraped) []Scraped {
	seen := make(map[string]bool, len(items))
	out := make([]Scraped, 0, len(items))
	for _, a := range items {
		u := strings.TrimSpace(a.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		a.URL = u
		out = append(out, a)
	}
	return out
}

// Within keeps articles whose publishedAt (else scrapedAt) is inside window.
// Articles with no usable timestamp are kept.
func Within(items []Scraped, window time.Duration, now time.Time) []Scraped {
	cutoff := now.Add(-window)
	out := make([]Scraped, 0, len(items))
	for _, a := range items {
		ts := a.timestamp()
		if ts == nil || !ts.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// SortNewest orders by publishedAt, else scrapedAt, newest first.
func SortNewest(items []Scraped) {
	key := func(a Scraped) int64 {
		if ts := a.timestamp(); ts != nil {
			return ts.UnixNano()
		}
		return -1 << 62
	}
	sort.SliceStable(items, func(i, j int) bool {
		return key(items[i]) > key(items[j])
	})
}

func (a Scraped) timestamp() *time.Time {
	if a.PublishedAt != nil && *a.PublishedAt != "" {
		return timefmt.ParseTimestampPtr(a.PublishedAt)
	}
	return timefmt.ParseTimestampPtr(a.ScrapedAt)
}

// ToRows maps scraped articles to database rows, minting ids where missing.
func ToRows(items []Scraped, newID func() string, now time.Time) []model.RawArticle {
	rows := make([]model.RawArticle, 0, len(items))
	for _, a := range items {
		id := a.ID
		if id == "" {
			id = newID()
		}
		title := strings.TrimSpace(a.Title)
		if title == "" {
			title = "Untitled"
		}
		scraped := a.ScrapedAt
		if scraped == nil {
			s := now.UTC().Format(time.RFC3339)
			scraped = &s
		}
		rows = append(rows, model.RawArticle{
			ArticleID:   id,
			Title:       title,
			Description: a.Description,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			ScrapedAt:   scraped,
			ImageURL:    a.ImageURL,
			Category:    a.Category,
			Source:      a.Source,
		})
	}
	return rows
}

// Enricher fills in missing fields before upload.
type Enricher interface {
	Enrich(ctx context.Context, rows []model.RawArticle) int
}

// Pipeline runs decode, dedupe, filter, sort, enrich and upsert.
type Pipeline struct {
	writer   source.Writer
	enricher Enricher
	logger   *zap.Logger
	window   time.Duration
	now      func() time.Time
	newID    func() string
}

type Option func(*Pipeline)

// WithWindow enables the recency filter. Zero disables it.
func WithWindow(d time.Duration) Option {
	return func(p *Pipeline) { p.window = d }
}

func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithIDFunc(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

func NewPipeline(w source.Writer, opts ...Option) *Pipeline {
	p := &Pipeline{
		writer: w,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "ingest"))
	return p
}

// Result counts what happened at each step.
type Result struct {
	Read     int
	Kept     int
	Enriched int
	Upserted int
}

func (p *Pipeline) RunFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return p.Run(ctx, data)
}

func (p *Pipeline) Run(ctx context.Context, data []byte) (Result, error) {
	now := p.now()

	items, err := Decode(data, now)
	if err != nil {
		return Result{}, err
	}
	res := Result{Read: len(items)}

	items = Dedupe(items)
	if p.window > 0 {
		items = Within(items, p.window, now)
	}
	SortNewest(items)
	res.Kept = len(items)
	p.logger.Info("Articles prepared", zap.Int("read", res.Read), zap.Int("kept", res.Kept))

	if len(items) == 0 {
		return res, nil
	}

	rows := ToRows(items, p.newID, now)
	if p.enricher != nil {
		res.Enriched = p.enricher.Enrich(ctx, rows)
	}

	n, err := p.writer.Upsert(ctx, rows)
	res.Upserted = n
	if err != nil {
		return res, fmt.Errorf("uploading articles: %w", err)
	}
	p.logger.Info("Articles uploaded", zap.Int("count", n))
	return res, nil
}
