package source

import (
	"context"
	"fmt"
	"time"

	"ai-newsletter/internal/apperr"
	"ai-newsletter/internal/model"
	"ai-newsletter/internal/timefmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the articles table the dashboard reads from.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
	id           BIGSERIAL PRIMARY KEY,
	article_id   TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT,
	url          TEXT NOT NULL UNIQUE,
	published_at TIMESTAMPTZ,
	scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	image_url    TEXT,
	category     TEXT,
	source       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_scraped_at ON articles (scraped_at DESC);
`

// Postgres reads articles straight from the database behind the REST API.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and pings connStr.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// EnsureSchema applies Schema. Safe to call repeatedly.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]model.RawArticle, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := p.pool.Query(ctx, `
		SELECT article_id, title, description, url, published_at, scraped_at,
		       image_url, category, source
		FROM articles
		ORDER BY scraped_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.NewFetch("Database error", err)
	}
	defer rows.Close()

	var out []model.RawArticle
	for rows.Next() {
		var (
			a                  model.RawArticle
			published, scraped *time.Time
		)
		if err := rows.Scan(
			&a.ArticleID,
			&a.Title,
			&a.Description,
			&a.URL,
			&published,
			&scraped,
			&a.ImageURL,
			&a.Category,
			&a.Source,
		); err != nil {
			return nil, apperr.NewFetch("Database error", fmt.Errorf("scanning article: %w", err))
		}
		a.PublishedAt = formatTime(published)
		a.ScrapedAt = formatTime(scraped)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewFetch("Database error", err)
	}
	return out, nil
}

// Upsert inserts rows, updating the existing row when the url is already present.
func (p *Postgres) Upsert(ctx context.Context, rows []model.RawArticle) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		scraped := timefmt.ParseTimestampPtr(r.ScrapedAt)
		if scraped == nil {
			now := time.Now().UTC()
			scraped = &now
		}
		batch.Queue(`
			INSERT INTO articles (article_id, title, description, url, published_at, scraped_at, image_url, category, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (url) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				published_at = excluded.published_at,
				scraped_at = excluded.scraped_at,
				image_url = excluded.image_url,
				category = excluded.category,
				source = excluded.source
		`, r.ArticleID, r.Title, r.Description, r.URL,
			timefmt.ParseTimestampPtr(r.PublishedAt), *scraped,
			r.ImageURL, r.Category, r.Source)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	n := 0
	for _, r := range rows {
		if _, err := br.Exec(); err != nil {
			return n, fmt.Errorf("upserting article %s: %w", r.URL, err)
		}
		n++
	}
	return n, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
