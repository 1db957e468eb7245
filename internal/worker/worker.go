package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-newsletter/internal/model"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// Loader is the part of the feed controller the reloader drives.
type Loader interface {
	Load(ctx context.Context) error
}

// Reloader runs manual reloads one at a time, off the request path.
type Reloader struct {
	loader   Loader
	logger   *zap.Logger
	triggers chan struct{}
	done     chan struct{}
}

func NewReloader(loader Loader, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		loader:   loader,
		logger:   logger.With(zap.String("component", "reloader")),
		triggers: make(chan struct{}, 1),
		done:     make(chan struct{}, 1),
	}
}

// Trigger asks for a reload. Requests made while one is already pending
// collapse into it; Trigger reports false in that case.
func (r *Reloader) Trigger() bool {
	select {
	case r.triggers <- struct{}{}:
		return true
	default:
		return false
	}
}

// Done signals after each completed reload, successful or not.
func (r *Reloader) Done() <-chan struct{} {
	return r.done
}

// Start runs the reload loop until ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) {
	r.logger.Info("Reloader started. Waiting for triggers...")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reloader shutting down")
			return
		case <-r.triggers:
		}

		start := time.Now()
		if err := r.loader.Load(ctx); err != nil {
			// The controller already reported it; no retry.
			r.logger.Warn("Reload failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		} else {
			r.logger.Info("Reload complete", zap.Duration("took", time.Since(start)))
		}

		select {
		case r.done <- struct{}{}:
		default:
		}
	}
}

// PageReader extracts the readable article behind a URL.
type PageReader interface {
	ReadPage(ctx context.Context, pageURL string) (*readability.Article, error)
}

// httpPageReader downloads pages with its client and runs them through
// readability.
type httpPageReader struct {
	client *http.Client
}

func (h *httpPageReader) ReadPage(ctx context.Context, pageURL string) (*readability.Article, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "newsdash/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	art, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}
	return &art, nil
}

// Enricher fills in descriptions for scraped rows that came without one.
type Enricher struct {
	pages  PageReader
	logger *zap.Logger
}

func NewEnricher(logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		pages:  &httpPageReader{client: &http.Client{Timeout: 30 * time.Second}},
		logger: logger.With(zap.String("component", "enricher")),
	}
}

// Enrich updates rows in place and returns how many gained a description.
// A failed page leaves its row unchanged.
func (e *Enricher) Enrich(ctx context.Context, rows []model.RawArticle) int {
	n := 0
	for i := range rows {
		if ctx.Err() != nil {
			e.logger.Info("Enrichment cancelled", zap.Int("enriched", n))
			return n
		}
		if e.enrichOne(ctx, &rows[i]) {
			n++
		}
	}
	return n
}

func (e *Enricher) enrichOne(ctx context.Context, row *model.RawArticle) bool {
	if row.Description != nil && strings.TrimSpace(*row.Description) != "" {
		return false
	}
	logger := e.logger.With(zap.String("url", row.URL))
	logger.Debug("Reading page")

	page, err := e.pages.ReadPage(ctx, row.URL)
	if err != nil {
		logger.Warn("Page unreadable", zap.Error(err))
		return false
	}

	if strings.TrimSpace(row.Title) == "" && page.Title != "" {
		row.Title = page.Title
	}
	excerpt := strings.TrimSpace(page.Excerpt)
	if excerpt == "" {
		return false
	}
	row.Description = &excerpt
	return true
}
