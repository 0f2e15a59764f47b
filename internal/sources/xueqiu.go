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

// Xueqiu fetches the public timeline of the Chinese investor community
// xueqiu.com, one request per configured category. The site requires a
// session cookie even for public endpoints.
type Xueqiu struct {
	cfg    config.XueqiuConfig
	client *http.Client
	logger *slog.Logger
}

var _ Adapter = (*Xueqiu)(nil)

func NewXueqiu(cfg config.XueqiuConfig, client *http.Client, logger *slog.Logger) *Xueqiu {
	if client == nil {
		client = newHTTPClient(15 * time.Second)
	}
	return &Xueqiu{cfg: cfg, client: client, logger: logger}
}

func (x *Xueqiu) Name() string { return "xueqiu" }

// Fetch walks the configured categories, deduplicating posts that appear
// in more than one. Without a cookie the adapter returns no records
// rather than collecting guaranteed 4xx responses.
func (x *Xueqiu) Fetch(ctx context.Context) ([]core.RawRecord, error) {
	if x.cfg.Cookie == "" {
		x.logger.Warn("xueqiu cookie not configured, skipping fetch")
		return nil, nil
	}

	seen := make(map[string]struct{})
	var records []core.RawRecord
	for label, categoryID := range x.cfg.Categories {
		recs, err := x.fetchCategory(ctx, categoryID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			x.logger.Warn("xueqiu category skipped", "category", label, "error", err)
			continue
		}
		for _, rec := range recs {
			if _, ok := seen[rec.SourceID]; ok {
				continue
			}
			seen[rec.SourceID] = struct{}{}
			records = append(records, rec)
		}
	}
	return records, nil
}

type xueqiuTimeline struct {
	List []xueqiuListItem `json:"list"`
}

// xueqiuListItem wraps a status. The API serializes the status itself as
// a JSON string under "data".
type xueqiuListItem struct {
	Data json.RawMessage `json:"data"`
}

type xueqiuStatus struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	Description string `json:"description"`
	ReplyCount  int    `json:"reply_count"`
	CreatedAt   int64  `json:"created_at"` // epoch milliseconds
	User        struct {
		ID         int64  `json:"id"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
}

func (x *Xueqiu) fetchCategory(ctx context.Context, categoryID int) ([]core.RawRecord, error) {
	endpoint := x.cfg.BaseURL + "/v4/statuses/public_timeline_by_category.json"
	params := url.Values{}
	params.Set("since_id", "-1")
	params.Set("max_id", "-1")
	params.Set("count", strconv.Itoa(x.cfg.Count))
	params.Set("category", strconv.Itoa(categoryID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cookie", x.cfg.Cookie)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xueqiu request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xueqiu returned %s", resp.Status)
	}

	var timeline xueqiuTimeline
	if err := json.NewDecoder(resp.Body).Decode(&timeline); err != nil {
		return nil, fmt.Errorf("decode xueqiu response: %w", err)
	}

	records := make([]core.RawRecord, 0, len(timeline.List))
	for _, item := range timeline.List {
		status, err := decodeStatus(item.Data)
		if err != nil {
			x.logger.Debug("xueqiu status dropped", "error", err)
			continue
		}
		if status.ID == 0 {
			continue
		}
		records = append(records, x.toRecord(status))
	}
	return records, nil
}

// decodeStatus handles both shapes of the "data" field: an object, or a
// JSON string containing the object.
func decodeStatus(raw json.RawMessage) (xueqiuStatus, error) {
	var status xueqiuStatus
	if len(raw) == 0 {
		return status, fmt.Errorf("empty status")
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return status, err
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return status, err
	}
	return status, nil
}

func (x *Xueqiu) toRecord(status xueqiuStatus) core.RawRecord {
	content := status.Text
	if content == "" {
		content = status.Description
	}
	content = htmlToText(content)

	title := status.Title
	if title == "" {
		title = truncateRunes(content, 100)
	}

	var publishedAt time.Time
	if status.CreatedAt > 0 {
		publishedAt = time.UnixMilli(status.CreatedAt).UTC()
	}

	return core.RawRecord{
		Source:      x.Name(),
		SourceID:    "xueqiu_" + strconv.FormatInt(status.ID, 10),
		Author:      status.User.ScreenName,
		Title:       title,
		Content:     content,
		URL:         fmt.Sprintf("https://xueqiu.com/%d/%d", status.User.ID, status.ID),
		Score:       status.ReplyCount,
		PublishedAt: publishedAt,
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
