package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"parkintel/internal/config"
	"parkintel/internal/core"
)

// youtubeFeed matches the Atom feed YouTube serves per channel. Video id
// and description live in namespaced elements; encoding/xml matches on
// local names, so plain tags suffice.
type youtubeFeed struct {
	XMLName xml.Name       `xml:"feed"`
	Entries []youtubeEntry `xml:"entry"`
}

type youtubeEntry struct {
	VideoID string `xml:"videoId"` // yt:videoId
	Title   string `xml:"title"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Author struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Published string `xml:"published"`
	Media     struct {
		Description string `xml:"description"`
	} `xml:"group"` // media:group
}

// YouTube reads the public per-channel video feeds; no API key needed.
type YouTube struct {
	cfg    config.YouTubeConfig
	client *http.Client
	logger *slog.Logger
}

var _ Adapter = (*YouTube)(nil)

func NewYouTube(cfg config.YouTubeConfig, client *http.Client, logger *slog.Logger) *YouTube {
	if client == nil {
		client = newHTTPClient(20 * time.Second)
	}
	return &YouTube{cfg: cfg, client: client, logger: logger}
}

func (y *YouTube) Name() string { return "youtube" }

// Fetch pulls the latest uploads of every configured channel. Per-channel
// failures are logged and skipped.
func (y *YouTube) Fetch(ctx context.Context) ([]core.RawRecord, error) {
	var records []core.RawRecord
	for name, channelID := range y.cfg.Channels {
		recs, err := y.fetchChannel(ctx, name, channelID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			y.logger.Warn("youtube channel skipped", "channel", name, "error", err)
			continue
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (y *YouTube) fetchChannel(ctx context.Context, name, channelID string) ([]core.RawRecord, error) {
	return y.fetchFeedURL(ctx, name, "https://www.youtube.com/feeds/videos.xml?channel_id="+channelID)
}

func (y *YouTube) fetchFeedURL(ctx context.Context, name, feedURL string) ([]core.RawRecord, error) {
	data, err := fetchURL(ctx, y.client, feedURL)
	if err != nil {
		return nil, err
	}

	var feed youtubeFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse channel feed %s: %w", name, err)
	}

	records := make([]core.RawRecord, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry.VideoID == "" {
			continue
		}
		url := entry.Link.Href
		if url == "" {
			url = "https://www.youtube.com/watch?v=" + entry.VideoID
		}
		records = append(records, core.RawRecord{
			Source:      y.Name(),
			SourceID:    "youtube_" + entry.VideoID,
			Author:      firstNonEmpty(entry.Author.Name, name),
			Title:       entry.Title,
			Content:     entry.Media.Description,
			URL:         url,
			PublishedAt: parseFeedTime(entry.Published),
		})
	}
	return records, nil
}
