package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"parkintel/internal/config"
	"parkintel/internal/core"
)

// HackerNews fetches front-page and keyword-matched stories from the
// Algolia search API. Stories under the configured minimum score are
// dropped at the source.
type HackerNews struct {
	cfg    config.HackerNewsConfig
	client *http.Client
	logger *slog.Logger
}

var _ Adapter = (*HackerNews)(nil)

// NewHackerNews wires the adapter; a nil client gets a default with a
// 15s timeout.
func NewHackerNews(cfg config.HackerNewsConfig, client *http.Client, logger *slog.Logger) *HackerNews {
	if client == nil {
		client = newHTTPClient(15 * time.Second)
	}
	return &HackerNews{cfg: cfg, client: client, logger: logger}
}

// Name identifies the adapter inside the registry.
func (h *HackerNews) Name() string { return "hackernews" }

// Fetch pulls the front page plus one search per configured keyword,
// deduplicating within the run. Cross-run dedup is the ingest gate's job.
func (h *HackerNews) Fetch(ctx context.Context) ([]core.RawRecord, error) {
	seen := make(map[string]struct{})
	var records []core.RawRecord

	add := func(batch []core.RawRecord) {
		for _, rec := range batch {
			if _, ok := seen[rec.SourceID]; ok {
				continue
			}
			seen[rec.SourceID] = struct{}{}
			records = append(records, rec)
		}
	}

	front, err := h.search(ctx, "")
	if err != nil {
		return nil, err
	}
	add(front)
	h.logger.Debug("hackernews front page fetched", "stories", len(front), "min_score", h.cfg.MinScore)

	for _, keyword := range h.cfg.Keywords {
		results, err := h.search(ctx, keyword)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", keyword, err)
		}
		add(results)
	}

	return records, nil
}

type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

type algoliaHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	StoryText   string `json:"story_text"`
	CommentText string `json:"comment_text"`
	CreatedAt   string `json:"created_at"`
}

func (h *HackerNews) search(ctx context.Context, query string) ([]core.RawRecord, error) {
	endpoint := h.cfg.BaseURL + "/search"
	params := url.Values{}
	params.Set("tags", "story")
	params.Set("hitsPerPage", strconv.Itoa(h.cfg.HitsPerPage))
	if query != "" {
		params.Set("query", query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hackernews request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hackernews returned %s", resp.Status)
	}

	var data algoliaResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode hackernews response: %w", err)
	}

	records := make([]core.RawRecord, 0, len(data.Hits))
	for _, hit := range data.Hits {
		if hit.Points < h.cfg.MinScore {
			continue
		}

		storyURL := hit.URL
		if storyURL == "" {
			storyURL = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}

		content := hit.StoryText
		if content == "" {
			content = hit.CommentText
		}

		var publishedAt time.Time
		if hit.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339, hit.CreatedAt); err == nil {
				publishedAt = t.UTC()
			}
		}

		records = append(records, core.RawRecord{
			Source:      h.Name(),
			SourceID:    "hn_" + hit.ObjectID,
			Author:      hit.Author,
			Title:       hit.Title,
			Content:     htmlToText(content),
			URL:         storyURL,
			Score:       hit.Points,
			PublishedAt: publishedAt,
		})
	}

	return records, nil
}
