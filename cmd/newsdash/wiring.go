package main

import (
	"context"
	"fmt"

	"ai-newsletter/internal/config"
	"ai-newsletter/internal/favorites"
	"ai-newsletter/internal/feed"
	"ai-newsletter/internal/source"
	"ai-newsletter/internal/store"

	"go.uber.org/zap"
)

// app holds the pieces every dashboard command needs.
type app struct {
	ctrl    *feed.Controller
	favs    *favorites.Store
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openSource(ctx context.Context, c *config.Config, logger *zap.Logger) (source.Source, func(), error) {
	noop := func() {}
	switch c.Source.Kind {
	case source.KindPostgREST:
		return source.NewPostgREST(c.Source.SupabaseURL, c.Source.SupabaseKey), noop, nil
	case source.KindPostgres:
		pg, err := source.NewPostgres(ctx, c.Source.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case source.KindRSS:
		return source.NewRSS(c.Feeds, logger), noop, nil
	case source.KindFile:
		return &source.FileSource{Path: c.Source.File}, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q", c.Source.Kind)
	}
}

// openWriter returns the upsert side of the configured database source.
func openWriter(ctx context.Context, c *config.Config) (source.Writer, func(), error) {
	switch c.Source.Kind {
	case source.KindPostgREST:
		return source.NewPostgREST(c.Source.SupabaseURL, c.Source.SupabaseKey), func() {}, nil
	case source.KindPostgres:
		pg, err := source.NewPostgres(ctx, c.Source.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("source %q cannot be uploaded to; use postgrest or postgres", c.Source.Kind)
	}
}

func openFavorites(c *config.Config, logger *zap.Logger) (*favorites.Store, func(), error) {
	kv, err := store.Open(c.StoreOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s favorites store: %w", c.Store.Backend, err)
	}
	closer := func() {
		if err := kv.Close(); err != nil {
			logger.Warn("Closing favorites store", zap.Error(err))
		}
	}
	return favorites.New(kv, logger), closer, nil
}

// newApp builds the controller for the dashboard commands. An unavailable
// favorites store is not fatal: the dashboard runs with an empty, unsaved
// favorites list.
func newApp(ctx context.Context, c *config.Config, logger *zap.Logger, opts ...feed.Option) (*app, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	a := &app{}
	src, closeSrc, err := openSource(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeSrc)

	favs, closeFavs, err := openFavorites(c, logger)
	if err != nil {
		logger.Warn("Favorites unavailable, saves will not persist", zap.Error(err))
		favs = favorites.New(nil, logger)
	} else {
		a.closers = append(a.closers, closeFavs)
	}
	a.favs = favs

	opts = append([]feed.Option{feed.WithLogger(logger), feed.WithLimit(c.Limit)}, opts...)
	a.ctrl = feed.New(src, favs, opts...)
	return a, nil
}
