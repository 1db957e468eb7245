package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ai-newsletter/internal/apperr"
	"ai-newsletter/internal/model"
)

// PostgREST talks to a Supabase project's REST endpoint.
type PostgREST struct {
	baseURL string
	apiKey  string
	table   string
	client  *http.Client
}

func NewPostgREST(baseURL, apiKey string) *PostgREST {
	return &PostgREST{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		table:   "articles",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// restError is the body PostgREST sends with non-2xx responses.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *PostgREST) endpoint(params url.Values) string {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, c.table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *PostgREST) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
}

func (c *PostgREST) Recent(ctx context.Context, limit int) ([]model.RawArticle, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	params := url.Values{}
	params.Set("select", "*")
	params.Set("order", "scraped_at.desc")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(params), nil)
	if err != nil {
		return nil, apperr.NewFetch("Supabase error", fmt.Errorf("creating request: %w", err))
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.NewFetch("Supabase error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.NewFetch("Supabase error", responseError(resp))
	}

	var rows []model.RawArticle
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, apperr.NewFetch("Supabase error", fmt.Errorf("decoding response: %w", err))
	}
	return rows, nil
}

// Upsert posts rows, merging on the url unique constraint.
func (c *PostgREST) Upsert(ctx context.Context, rows []model.RawArticle) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return 0, fmt.Errorf("marshaling articles: %w", err)
	}

	params := url.Values{}
	params.Set("on_conflict", "url")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(params), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request to Supabase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return 0, responseError(resp)
	}

	var inserted []model.RawArticle
	if err := json.NewDecoder(resp.Body).Decode(&inserted); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	return len(inserted), nil
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var re restError
	if err := json.Unmarshal(body, &re); err == nil && re.Message != "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, re.Message)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
