package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-newsletter/internal/apperr"
	"ai-newsletter/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strp(s string) *string { return &s }

func TestStatic_SortsAndLimits(t *testing.T) {
	s := &Static{Rows: []model.RawArticle{
		{ArticleID: "old", ScrapedAt: strp("2026-02-01T00:00:00Z")},
		{ArticleID: "none"},
		{ArticleID: "new", ScrapedAt: strp("2026-02-08T00:00:00Z")},
		{ArticleID: "pub-only", PublishedAt: strp("2026-02-05T00:00:00Z")},
	}}

	rows, err := s.Recent(context.Background(), 3)
	require.NoError(t, err)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ArticleID)
	}
	assert.Equal(t, []string{"new", "pub-only", "old"}, ids)
	assert.Equal(t, "old", s.Rows[0].ArticleID, "Recent must not reorder the backing slice")
}

func TestStatic_Error(t *testing.T) {
	s := &Static{Err: errors.New("boom")}
	_, err := s.Recent(context.Background(), 10)
	assert.EqualError(t, err, "boom")
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"article_id":"a","title":"A","url":"https://x/a","source":"bens_bites","scraped_at":"2026-02-08T00:00:00Z"}
	]`), 0o644))

	rows, err := (&FileSource{Path: path}).Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ArticleID)

	_, err = (&FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}).Recent(context.Background(), 10)
	var fe *apperr.FetchError
	assert.True(t, errors.As(err, &fe))
}

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test Feed</title>
  <item>
    <title>Agents everywhere</title>
    <link>https://example.com/p/agents</link>
    <description>&lt;p&gt;Agents   are &lt;b&gt;here&lt;/b&gt;&lt;/p&gt;</description>
    <pubDate>Sun, 08 Feb 2026 10:00:00 GMT</pubDate>
    <category>agents</category>
  </item>
  <item>
    <title>No link</title>
  </item>
  <item>
    <title>Older</title>
    <link>https://example.com/p/older</link>
    <pubDate>Sat, 07 Feb 2026 10:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func TestRSS_Recent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, rssBody)
	}))
	defer srv.Close()

	r := NewRSS([]Feed{{Name: "bens_bites", URL: srv.URL}}, zap.NewNop())
	r.now = func() time.Time { return time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC) }

	rows, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "Agents everywhere", first.Title)
	assert.Equal(t, "bens_bites", first.Source)
	assert.Equal(t, articleID("https://example.com/p/agents"), first.ArticleID)
	require.NotNil(t, first.Description)
	assert.Equal(t, "Agents are here", *first.Description)
	require.NotNil(t, first.Category)
	assert.Equal(t, "agents", *first.Category)
	assert.Equal(t, "2026-02-09T00:00:00Z", *first.ScrapedAt)

	again, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, first.ArticleID, again[0].ArticleID, "ids must be stable across fetches")
}

func TestRSS_LimitInterleavesFeedsByPublication(t *testing.T) {
	item := func(slug, pub string) string {
		return "<item><title>" + slug + "</title><link>https://example.com/" + slug +
			"</link><pubDate>" + pub + "</pubDate></item>"
	}
	feeds := map[string]string{
		"/bites": item("bites-old", "Mon, 02 Feb 2026 10:00:00 GMT") +
			item("bites-older", "Sun, 01 Feb 2026 10:00:00 GMT"),
		"/rundown": item("rundown-new", "Sun, 08 Feb 2026 10:00:00 GMT"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`+
			feeds[r.URL.Path]+`</channel></rss>`)
	}))
	defer srv.Close()

	r := NewRSS([]Feed{
		{Name: "bens_bites", URL: srv.URL + "/bites"},
		{Name: "ai_rundown", URL: srv.URL + "/rundown"},
	}, nil)

	rows, err := r.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rundown-new", rows[0].Title)
	assert.Equal(t, "bites-old", rows[1].Title)
}

func TestSortByRecency_PublishedBreaksScrapedTies(t *testing.T) {
	scraped := strp("2026-02-09T00:00:00Z")
	rows := []model.RawArticle{
		{ArticleID: "undated", ScrapedAt: scraped},
		{ArticleID: "early", ScrapedAt: scraped, PublishedAt: strp("2026-02-01T00:00:00Z")},
		{ArticleID: "newest", ScrapedAt: strp("2026-02-10T00:00:00Z")},
		{ArticleID: "late", ScrapedAt: scraped, PublishedAt: strp("2026-02-07T00:00:00Z")},
	}
	SortByRecency(rows)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ArticleID)
	}
	assert.Equal(t, []string{"newest", "late", "early", "undated"}, ids)
}

func TestRSS_AllFeedsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewRSS([]Feed{{Name: "a", URL: srv.URL}, {Name: "b", URL: srv.URL + "/b"}}, nil)
	_, err := r.Recent(context.Background(), 10)
	require.Error(t, err)

	var fe *apperr.FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "Feed error", fe.Message)
}

func TestRSS_NoFeeds(t *testing.T) {
	_, err := NewRSS(nil, nil).Recent(context.Background(), 10)
	assert.Error(t, err)
}

func TestArticleID_Stable(t *testing.T) {
	a := articleID("https://example.com/x")
	assert.Len(t, a, 32)
	assert.Equal(t, a, articleID("https://example.com/x"))
	assert.NotEqual(t, a, articleID("https://example.com/y"))
}
