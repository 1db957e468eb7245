package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ai-newsletter/internal/config"
	"ai-newsletter/internal/favorites"
	"ai-newsletter/internal/source"
	"ai-newsletter/internal/store"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"article_id":"a","title":"Agents","url":"https://x/a","source":"bens_bites","scraped_at":"2026-02-09T10:00:00Z"},
		{"article_id":"b","title":"Rundown","url":"https://x/b","source":"ai_rundown","scraped_at":"2026-02-09T09:00:00Z"}
	]`), 0o644))

	c, err := config.Defaults()
	require.NoError(t, err)
	c.Source.Kind = source.KindFile
	c.Source.File = path
	c.Store.Backend = store.BackendMemory
	return c
}

// withGlobalConfig points the command-level cfg at c for one test.
func withGlobalConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func parse(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "list"}
	bindFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplyFlags_FlagsWinOverConfig(t *testing.T) {
	c := fileConfig(t)
	c.Store.Backend = store.BackendBadger
	c.Store.Path = "/from/config"
	withGlobalConfig(t, c)

	applyFlags(parse(t, "--source", "rss", "--limit", "25", "--store", "sqlite"))

	assert.Equal(t, source.KindRSS, cfg.Source.Kind)
	assert.Equal(t, 25, cfg.Limit)
	assert.Equal(t, store.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, config.DefaultStorePath(store.BackendSQLite), cfg.Store.Path,
		"switching backend without a path picks that backend's default path")
}

func TestApplyFlags_ExplicitStorePath(t *testing.T) {
	withGlobalConfig(t, fileConfig(t))

	applyFlags(parse(t, "--store", "sqlite", "--store-path", "/tmp/favs.db", "--redis", "localhost:6390"))

	assert.Equal(t, store.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/favs.db", cfg.Store.Path)
	assert.Equal(t, "localhost:6390", cfg.Store.RedisURL)
}

func TestApplyFlags_UnsetFlagsKeepConfig(t *testing.T) {
	c := fileConfig(t)
	c.Limit = 40
	c.Store.Path = "/from/config"
	withGlobalConfig(t, c)

	applyFlags(parse(t))

	assert.Equal(t, source.KindFile, cfg.Source.Kind)
	assert.Equal(t, 40, cfg.Limit)
	assert.Equal(t, store.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "/from/config", cfg.Store.Path)
}

func TestNewApp_FavoritesUnavailableStillServes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	held, err := store.NewBadgerKV(dir)
	require.NoError(t, err)
	defer held.Close()

	c := fileConfig(t)
	c.Store.Backend = store.BackendBadger
	c.Store.Path = dir

	_, _, err = openFavorites(c, zap.NewNop())
	require.Error(t, err, "a locked badger directory cannot be opened twice")

	a, err := newApp(ctx, c, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.ctrl.Load(ctx))
	assert.Equal(t, 2, a.ctrl.Snapshot().Total)

	require.True(t, a.ctrl.ToggleSave(ctx, "a"))
	assert.True(t, a.ctrl.Snapshot().Articles[0].Saved)
	assert.Empty(t, a.favs.GetSaved(ctx))

	_, found, err := held.Get(ctx, favorites.StorageKey)
	require.NoError(t, err)
	assert.False(t, found, "nothing is written to a store this process could not open")
}

func TestNewApp_PersistsFavorites(t *testing.T) {
	ctx := context.Background()
	c := fileConfig(t)
	c.Store.Backend = store.BackendSQLite
	c.Store.Path = filepath.Join(t.TempDir(), "favorites.db")

	a, err := newApp(ctx, c, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.ctrl.Load(ctx))
	require.True(t, a.ctrl.ToggleSave(ctx, "b"))
	a.Close()

	again, err := newApp(ctx, c, zap.NewNop())
	require.NoError(t, err)
	defer again.Close()
	require.NoError(t, again.ctrl.Load(ctx))

	assert.Equal(t, []string{"b"}, again.favs.GetSaved(ctx))
	assert.Equal(t, 1, again.ctrl.Snapshot().SavedCount)
}

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	c := fileConfig(t)
	c.Source.Kind = "carrier-pigeon"

	_, err := newApp(context.Background(), c, zap.NewNop())
	assert.ErrorContains(t, err, `unknown source "carrier-pigeon"`)
}

func TestOpenSource(t *testing.T) {
	ctx := context.Background()
	c := fileConfig(t)
	c.Source.SupabaseURL = "https://project.supabase.co"
	c.Source.SupabaseKey = "anon"

	tests := []struct {
		kind string
		want any
	}{
		{source.KindPostgREST, &source.PostgREST{}},
		{source.KindRSS, &source.RSS{}},
		{source.KindFile, &source.FileSource{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			c.Source.Kind = tt.kind
			src, closer, err := openSource(ctx, c, zap.NewNop())
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
			closer()
		})
	}

	c.Source.Kind = "ftp"
	_, _, err := openSource(ctx, c, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenWriter_OnlyDatabaseSources(t *testing.T) {
	ctx := context.Background()
	c := fileConfig(t)

	_, _, err := openWriter(ctx, c)
	assert.ErrorContains(t, err, "cannot be uploaded to")

	c.Source.Kind = source.KindRSS
	_, _, err = openWriter(ctx, c)
	assert.ErrorContains(t, err, "cannot be uploaded to")

	c.Source.Kind = source.KindPostgREST
	c.Source.SupabaseURL = "https://project.supabase.co"
	c.Source.SupabaseKey = "anon"
	w, closer, err := openWriter(ctx, c)
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, &source.PostgREST{}, w)
}
