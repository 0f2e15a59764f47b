package sources

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"parkintel/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewHackerNews(config.HackerNewsConfig{}, nil, discardLogger()))
	r.Register(NewXueqiu(config.XueqiuConfig{}, nil, discardLogger()))

	names := r.Names()
	if len(names) != 2 || names[0] != "hackernews" || names[1] != "xueqiu" {
		t.Errorf("Names() = %v, want sorted [hackernews xueqiu]", names)
	}

	if _, err := r.Resolve("hackernews"); err != nil {
		t.Errorf("Resolve(hackernews) error: %v", err)
	}
	if _, err := r.Resolve("twitter"); err == nil {
		t.Error("Resolve(twitter) succeeded, want error for unknown source")
	}
}

func TestHTMLToText(t *testing.T) {
	got := htmlToText(`<p>Fed  holds <b>rates</b></p><script>alert(1)</script>`)
	if got != "Fed holds rates" {
		t.Errorf("htmlToText() = %q, want %q", got, "Fed holds rates")
	}
}

func TestHackerNewsFetch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"hits": [
			{"objectID": "101", "title": "Big raise", "url": "https://example.com/a", "author": "alice", "points": 120, "created_at": "2025-06-01T10:00:00Z"},
			{"objectID": "102", "title": "Ask HN: thing", "url": "", "author": "bob", "points": 80, "story_text": "<p>body</p>"},
			{"objectID": "103", "title": "Low score", "url": "https://example.com/c", "author": "carol", "points": 10}
		]}`)
	}))
	defer srv.Close()

	hn := NewHackerNews(config.HackerNewsConfig{
		BaseURL:     srv.URL,
		MinScore:    50,
		HitsPerPage: 30,
		Keywords:    []string{"crypto"},
	}, srv.Client(), discardLogger())

	records, err := hn.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d requests, want front page plus one keyword search", calls)
	}
	// The same hits come back from both queries; the run dedupes them, and
	// the 10-point story is filtered out.
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.SourceID != "hn_101" || first.Source != "hackernews" {
		t.Errorf("record identity = %s/%s, want hackernews/hn_101", first.Source, first.SourceID)
	}
	if first.Score != 120 || first.Author != "alice" {
		t.Errorf("record = %+v, want score and author carried over", first)
	}
	if first.PublishedAt.IsZero() {
		t.Error("published_at not parsed")
	}

	second := records[1]
	if second.URL != "https://news.ycombinator.com/item?id=102" {
		t.Errorf("self-post url = %q, want hn item link fallback", second.URL)
	}
	if second.Content != "body" {
		t.Errorf("content = %q, want stripped story text", second.Content)
	}
}

func TestHackerNewsFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	hn := NewHackerNews(config.HackerNewsConfig{BaseURL: srv.URL, HitsPerPage: 30}, srv.Client(), discardLogger())
	if _, err := hn.Fetch(context.Background()); err == nil {
		t.Error("Fetch() = nil error, want failure on 503")
	}
}

func TestSubstackFetchRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Macro Letter</title>
    <item>
      <title>Fed week preview</title>
      <link>https://macro.example.com/p/fed-week</link>
      <description>&lt;p&gt;Rates &amp;amp; more&lt;/p&gt;</description>
      <dc:creator>Jane</dc:creator>
      <pubDate>Mon, 02 Jun 2025 08:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`)
	}))
	defer srv.Close()

	sub := NewSubstack(config.SubstackConfig{
		Feeds: map[string]string{"macro-letter": srv.URL},
	}, srv.Client(), discardLogger())

	records, err := sub.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Source != "rss-substack" || rec.Author != "Jane" {
		t.Errorf("record = %+v, want rss-substack by Jane", rec)
	}
	wantID := "substack_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://macro.example.com/p/fed-week")).String()
	if rec.SourceID != wantID {
		t.Errorf("source id = %q, want deterministic uuid of the link", rec.SourceID)
	}
	if rec.Content != "Rates & more" {
		t.Errorf("content = %q, want html stripped", rec.Content)
	}
	if rec.PublishedAt.IsZero() {
		t.Error("pubDate not parsed")
	}
}

func TestSubstackSkipsBrokenFeed(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<rss version="2.0"><channel><item><title>ok</title><link>https://x/1</link></item></channel></rss>`)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()

	sub := NewSubstack(config.SubstackConfig{
		Feeds: map[string]string{"good": good.URL, "bad": bad.URL},
	}, http.DefaultClient, discardLogger())

	records, err := sub.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want only the good feed's entry", len(records))
	}
}

func TestYouTubeFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<?xml version="1.0"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <yt:videoId>abc123</yt:videoId>
    <title>Market open breakdown</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=abc123"/>
    <author><name>TraderTV</name></author>
    <published>2025-06-02T09:00:00+00:00</published>
    <media:group><media:description>SPX levels for today</media:description></media:group>
  </entry>
</feed>`)
	}))
	defer srv.Close()

	yt := NewYouTube(config.YouTubeConfig{Channels: map[string]string{"trader-tv": "UC1"}}, srv.Client(), discardLogger())
	// Point the fetch at the test server instead of youtube.com.
	records, err := yt.fetchFeedURL(context.Background(), "trader-tv", srv.URL)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.SourceID != "youtube_abc123" || rec.Author != "TraderTV" {
		t.Errorf("record = %+v, want youtube_abc123 by TraderTV", rec)
	}
	if rec.Content != "SPX levels for today" {
		t.Errorf("content = %q, want media description", rec.Content)
	}
}

func TestXueqiuFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") == "" {
			http.Error(w, "no cookie", http.StatusBadRequest)
			return
		}
		// One status as a plain object, one wrapped in a JSON string.
		io.WriteString(w, `{"list": [
			{"data": {"id": 100, "title": "", "text": "<p>茅台财报超预期</p>", "reply_count": 42, "created_at": 1748772000000, "user": {"id": 7, "screen_name": "投资者甲"}}},
			{"data": "{\"id\": 200, \"title\": \"北向资金流入\", \"text\": \"详情\", \"reply_count\": 3, \"created_at\": 1748772000000, \"user\": {\"id\": 8, \"screen_name\": \"投资者乙\"}}"}
		]}`)
	}))
	defer srv.Close()

	xq := NewXueqiu(config.XueqiuConfig{
		BaseURL:    srv.URL,
		Cookie:     "xq_a_token=abc",
		Count:      20,
		Categories: map[string]int{"hot": 111},
	}, srv.Client(), discardLogger())

	records, err := xq.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.SourceID != "xueqiu_100" || first.Author != "投资者甲" {
		t.Errorf("record = %+v, want xueqiu_100 by 投资者甲", first)
	}
	if first.Content != "茅台财报超预期" {
		t.Errorf("content = %q, want html stripped", first.Content)
	}
	if first.Title != "茅台财报超预期" {
		t.Errorf("title = %q, want fallback to content", first.Title)
	}
	if first.URL != "https://xueqiu.com/7/100" {
		t.Errorf("url = %q, want user/post path", first.URL)
	}
	if first.Score != 42 {
		t.Errorf("score = %d, want reply count", first.Score)
	}

	if records[1].SourceID != "xueqiu_200" || records[1].Title != "北向资金流入" {
		t.Errorf("string-wrapped status = %+v, want xueqiu_200", records[1])
	}
}

func TestXueqiuSkipsWithoutCookie(t *testing.T) {
	xq := NewXueqiu(config.XueqiuConfig{BaseURL: "http://invalid.test"}, nil, discardLogger())
	records, err := xq.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if records != nil {
		t.Errorf("records = %v, want none without a cookie", records)
	}
}

func TestParseFeedTime(t *testing.T) {
	for _, value := range []string{
		"Mon, 02 Jun 2025 08:00:00 +0000",
		"Mon, 2 Jun 2025 08:00:00 GMT",
		"2025-06-02T08:00:00Z",
	} {
		if parseFeedTime(value).IsZero() {
			t.Errorf("parseFeedTime(%q) = zero, want parsed", value)
		}
	}
	if !parseFeedTime("not a date").IsZero() {
		t.Error("parseFeedTime(garbage) parsed, want zero")
	}
}
