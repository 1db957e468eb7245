// Package feed owns the article collection, the filter state and the
// save toggle, and pushes filtered views to its renderers.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-newsletter/internal/apperr"
	"ai-newsletter/internal/favorites"
	"ai-newsletter/internal/model"
	"ai-newsletter/internal/source"
	"ai-newsletter/internal/timefmt"

	"go.uber.org/zap"
)

// LoadFailedPrefix starts every load failure message shown to the user.
const LoadFailedPrefix = "Unable to load articles from database. "

// NoArticlesLoaded is the last-updated text before any article is loaded.
const NoArticlesLoaded = "No articles loaded"

type Controller struct {
	src    source.Source
	favs   *favorites.Store
	clock  timefmt.Clock
	logger *zap.Logger
	limit  int

	mu         sync.Mutex
	articles   []model.Article
	filter     model.FilterState
	loadErr    string
	loaded     bool
	nextGen    uint64
	appliedGen uint64
	renderers  []Renderer
}

type Option func(*Controller)

func WithRenderer(r Renderer) Option {
	return func(c *Controller) { c.renderers = append(c.renderers, r) }
}

func WithClock(clock timefmt.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithLimit overrides how many rows are requested per load.
func WithLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.limit = n
		}
	}
}

func New(src source.Source, favs *favorites.Store, opts ...Option) *Controller {
	c := &Controller{
		src:    src,
		favs:   favs,
		clock:  timefmt.SystemClock{},
		logger: zap.NewNop(),
		limit:  source.DefaultLimit,
		filter: model.DefaultFilter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.favs == nil {
		c.favs = favorites.New(nil, c.logger)
	}
	c.logger = c.logger.With(zap.String("component", "feed"))
	return c
}

// Subscribe adds a renderer. It receives the next notification, not the
// current state; call Snapshot for that.
func (c *Controller) Subscribe(r Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderers = append(c.renderers, r)
}

// Load fetches the most recent articles and replaces the collection.
//
// Zero rows and fetch failures keep the previous collection and notify
// renderers through LoadFailed. If a newer load has already been applied
// when this one returns, its result is dropped.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.nextGen++
	gen := c.nextGen
	c.mu.Unlock()

	rows, err := c.src.Recent(ctx, c.limit)
	if err == nil && len(rows) == 0 {
		err = &apperr.EmptyResultError{}
	}
	if err != nil {
		return c.fail(gen, classify(err))
	}

	c.mu.Lock()
	if gen < c.appliedGen {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale load", zap.Uint64("generation", gen))
		return nil
	}
	// ToggleSave writes favorites under c.mu, so reading them here keeps
	// the collection and the store in step.
	articles := toArticles(rows, c.favs.GetSaved(ctx), c.articles)
	c.appliedGen = gen
	c.articles = articles
	c.loaded = true
	c.loadErr = ""
	snap := c.snapshotLocked()
	renderers := c.renderersLocked()
	c.mu.Unlock()

	c.logger.Info("Articles loaded", zap.Int("count", len(articles)), zap.Int("saved", snap.SavedCount))
	for _, r := range renderers {
		r.Render(snap)
	}
	return nil
}

func (c *Controller) fail(gen uint64, err error) error {
	msg := LoadFailedPrefix + err.Error()

	c.mu.Lock()
	if gen < c.appliedGen {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale load failure", zap.Uint64("generation", gen), zap.Error(err))
		return err
	}
	c.appliedGen = gen
	c.loadErr = msg
	renderers := c.renderersLocked()
	c.mu.Unlock()

	c.logger.Error("Load failed", zap.Error(err))
	for _, r := range renderers {
		r.LoadFailed(msg)
	}
	return err
}

// classify keeps typed errors and wraps anything else as a fetch failure.
func classify(err error) error {
	var fe *apperr.FetchError
	var ee *apperr.EmptyResultError
	if errors.As(err, &fe) || errors.As(err, &ee) {
		return err
	}
	return apperr.NewFetch("fetch error", err)
}

// toArticles builds the collection from rows. SavedAt carries over from prev
// for articles that stay saved.
func toArticles(rows []model.RawArticle, saved []string, prev []model.Article) []model.Article {
	set := make(map[string]struct{}, len(saved))
	for _, id := range saved {
		set[id] = struct{}{}
	}
	savedAt := make(map[string]*time.Time)
	for _, a := range prev {
		if a.SavedAt != nil {
			if _, ok := savedAt[a.ID]; !ok {
				savedAt[a.ID] = a.SavedAt
			}
		}
	}

	out := make([]model.Article, 0, len(rows))
	for _, r := range rows {
		a := model.Article{
			ID:          r.ArticleID,
			Title:       r.Title,
			URL:         r.URL,
			PublishedAt: timefmt.ParseTimestampPtr(r.PublishedAt),
			ScrapedAt:   timefmt.ParseTimestampPtr(r.ScrapedAt),
			Source:      r.Source,
		}
		if r.Description != nil {
			a.Description = *r.Description
		}
		if r.ImageURL != nil {
			a.ImageURL = *r.ImageURL
		}
		if r.Category != nil {
			a.Category = *r.Category
		}
		if _, a.Saved = set[a.ID]; a.Saved {
			a.SavedAt = savedAt[a.ID]
		}
		out = append(out, a)
	}
	return out
}

// SetSourceFilter selects "all" or a single source. Unknown sources are
// accepted and simply match nothing.
func (c *Controller) SetSourceFilter(value string) {
	if value == "" {
		value = model.FilterAll
	}
	c.mutate(func() { c.filter.Source = value })
}

func (c *Controller) SetSavedOnly(enabled bool) {
	c.mutate(func() { c.filter.SavedOnly = enabled })
}

// ToggleSave flips the saved flag of the first article with id and updates
// the favorites store. It reports whether such an article exists; an
// unknown id changes nothing. A failed favorites write is logged and the
// in-memory flag still flips.
func (c *Controller) ToggleSave(ctx context.Context, id string) bool {
	c.mu.Lock()
	idx := -1
	for i := range c.articles {
		if c.articles[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return false
	}

	a := &c.articles[idx]
	a.Saved = !a.Saved
	var err error
	if a.Saved {
		now := c.clock.Now()
		a.SavedAt = &now
		err = c.favs.Add(ctx, id)
	} else {
		a.SavedAt = nil
		err = c.favs.Remove(ctx, id)
	}
	saved := a.Saved
	snap := c.snapshotLocked()
	renderers := c.renderersLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Favorite not persisted", zap.String("article_id", id), zap.Error(err))
	}
	c.logger.Debug("Save toggled", zap.String("article_id", id), zap.Bool("saved", saved))
	for _, r := range renderers {
		r.Render(snap)
	}
	return true
}

func (c *Controller) mutate(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	renderers := c.renderersLocked()
	c.mu.Unlock()

	for _, r := range renderers {
		r.Render(snap)
	}
}

// Snapshot returns the current filtered view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Filtered returns the articles matching f in collection order.
func Filtered(articles []model.Article, f model.FilterState) []model.Article {
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}

func (c *Controller) snapshotLocked() Snapshot {
	now := c.clock.Now()
	filtered := Filtered(c.articles, c.filter)

	views := make([]model.ArticleView, 0, len(filtered))
	for _, a := range filtered {
		views = append(views, model.ArticleView{
			Article:     a,
			SourceLabel: model.SourceLabel(a.Source),
			TimeAgo:     timefmt.TimeAgo(a.DisplayTime(), now),
		})
	}

	s := Snapshot{
		Articles:    views,
		Filter:      c.filter,
		Error:       c.loadErr,
		LastUpdated: NoArticlesLoaded,
		Sources:     sources(c.articles),
		Total:       len(c.articles),
	}
	for _, a := range c.articles {
		if a.Saved {
			s.SavedCount++
		}
	}
	if len(c.articles) > 0 {
		s.LastUpdated = "Last updated: " + timefmt.TimeAgo(c.articles[0].RecencyTime(), now)
	}

	switch {
	case c.loadErr != "":
		s.State = StateError
	case !c.loaded:
		s.State = StateLoading
	case len(views) == 0:
		s.State = StateEmptyFilter
	default:
		s.State = StateReady
	}
	return s
}

func (c *Controller) renderersLocked() []Renderer {
	return append([]Renderer(nil), c.renderers...)
}

// sources lists the filter values: "all", the known newsletters, then any
// other source present in articles, in first-seen order.
func sources(articles []model.Article) []string {
	out := append([]string{model.FilterAll}, model.KnownSources...)
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s] = true
	}
	for _, a := range articles {
		if a.Source == "" || seen[a.Source] {
			continue
		}
		seen[a.Source] = true
		out = append(out, a.Source)
	}
	return out
}
