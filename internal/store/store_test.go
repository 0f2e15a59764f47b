package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkintel/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testArticle(sourceID, title string, ingestedAt time.Time) core.Article {
	return core.Article{
		Source:     "hackernews",
		SourceID:   sourceID,
		Author:     "pg",
		Title:      title,
		Content:    "body",
		URL:        "https://example.com/" + sourceID,
		Score:      120,
		Tags:       []string{"ai", "crypto"},
		IngestedAt: ingestedAt,
	}
}

func TestInsertArticleDeduplicates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inserted, err := st.InsertArticle(ctx, testArticle("1", "AI breakthrough", now))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported duplicate")
	}

	// Same identity, different payload. The original row must win.
	dup := testArticle("1", "AI breakthrough (updated)", now.Add(time.Hour))
	inserted, err = st.InsertArticle(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatal("duplicate insert reported a new row")
	}

	articles, err := st.AllArticles(ctx)
	if err != nil {
		t.Fatalf("AllArticles() error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if articles[0].Title != "AI breakthrough" {
		t.Errorf("title = %q, want original preserved", articles[0].Title)
	}
	if got := articles[0].Tags; len(got) != 2 || got[0] != "ai" || got[1] != "crypto" {
		t.Errorf("tags = %v, want [ai crypto]", got)
	}
}

func TestUnscoredSelectionAndOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if _, err := st.InsertArticle(ctx, testArticle(id, "t"+id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	unscored, err := st.Unscored(ctx, 0)
	if err != nil {
		t.Fatalf("Unscored() error: %v", err)
	}
	if len(unscored) != 3 {
		t.Fatalf("got %d unscored, want 3", len(unscored))
	}
	if unscored[0].SourceID != "a" || unscored[2].SourceID != "c" {
		t.Errorf("unscored order = [%s %s %s], want oldest first",
			unscored[0].SourceID, unscored[1].SourceID, unscored[2].SourceID)
	}

	if err := st.SetRelevance(ctx, unscored[0].ID, 4, []string{"ai-capex-growth"}); err != nil {
		t.Fatalf("SetRelevance() error: %v", err)
	}

	unscored, err = st.Unscored(ctx, 1)
	if err != nil {
		t.Fatalf("Unscored() after scoring: %v", err)
	}
	if len(unscored) != 1 || unscored[0].SourceID != "b" {
		t.Errorf("unscored = %v, want just b", unscored)
	}
}

func TestSetRelevanceIsFirstWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.InsertArticle(ctx, testArticle("1", "t", time.Now().UTC())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	articles, err := st.AllArticles(ctx)
	if err != nil {
		t.Fatalf("AllArticles() error: %v", err)
	}
	id := articles[0].ID

	if err := st.SetRelevance(ctx, id, 5, []string{"fed-rate-pause"}); err != nil {
		t.Fatalf("first SetRelevance(): %v", err)
	}
	err = st.SetRelevance(ctx, id, 1, []string{"noise"})
	if !errors.Is(err, ErrAlreadyScored) {
		t.Fatalf("second SetRelevance() error = %v, want ErrAlreadyScored", err)
	}

	articles, err = st.AllArticles(ctx)
	if err != nil {
		t.Fatalf("AllArticles() error: %v", err)
	}
	a := articles[0]
	if a.RelevanceScore != 5 {
		t.Errorf("relevance = %d, want original 5", a.RelevanceScore)
	}
	if len(a.NarrativeTags) != 1 || a.NarrativeTags[0] != "fed-rate-pause" {
		t.Errorf("narrative tags = %v, want original only", a.NarrativeTags)
	}
}

func TestSetRelevanceValidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.SetRelevance(ctx, 1, 0, nil); err == nil {
		t.Error("score 0 accepted, want error")
	}
	if err := st.SetRelevance(ctx, 1, 6, nil); err == nil {
		t.Error("score 6 accepted, want error")
	}
	if err := st.SetRelevance(ctx, 999, 3, nil); !errors.Is(err, ErrAlreadyScored) {
		t.Errorf("missing article error = %v, want ErrAlreadyScored", err)
	}
}

func TestArticlesBetweenIsHalfOpen(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		a := testArticle(string(rune('a'+i)), "t", base.Add(time.Duration(i)*time.Hour))
		if _, err := st.InsertArticle(ctx, a); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	got, err := st.ArticlesBetween(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ArticlesBetween() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d articles, want 2 (from inclusive, to exclusive)", len(got))
	}
	if got[0].SourceID != "b" || got[1].SourceID != "c" {
		t.Errorf("window = [%s %s], want [b c]", got[0].SourceID, got[1].SourceID)
	}
}

func TestLatestFilters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	a1 := testArticle("1", "first", base)
	a2 := testArticle("2", "second", base.Add(time.Hour))
	a3 := testArticle("3", "third", base.Add(2*time.Hour))
	a3.Source = "xueqiu"
	for _, a := range []core.Article{a1, a2, a3} {
		if _, err := st.InsertArticle(ctx, a); err != nil {
			t.Fatalf("insert %s: %v", a.SourceID, err)
		}
	}

	got, err := st.Latest(ctx, 10, "", 0)
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if len(got) != 3 || got[0].Title != "third" {
		t.Fatalf("Latest() = %d articles, first %q; want newest first", len(got), got[0].Title)
	}

	got, err = st.Latest(ctx, 10, "hackernews", 0)
	if err != nil {
		t.Fatalf("Latest(source) error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Latest(source) = %d articles, want 2", len(got))
	}

	// Relevance filter excludes unscored rows.
	if err := st.SetRelevance(ctx, got[0].ID, 4, nil); err != nil {
		t.Fatalf("SetRelevance() error: %v", err)
	}
	scored, err := st.Latest(ctx, 10, "", 4)
	if err != nil {
		t.Fatalf("Latest(minRelevance) error: %v", err)
	}
	if len(scored) != 1 || scored[0].ID != got[0].ID {
		t.Errorf("Latest(minRelevance) = %v, want just the scored article", scored)
	}
}

func TestReplaceTags(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.InsertArticle(ctx, testArticle("1", "t", time.Now().UTC())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	articles, err := st.AllArticles(ctx)
	if err != nil {
		t.Fatalf("AllArticles() error: %v", err)
	}
	id := articles[0].ID

	if err := st.ReplaceTags(ctx, id, []string{"macro"}); err != nil {
		t.Fatalf("ReplaceTags() error: %v", err)
	}
	articles, err = st.AllArticles(ctx)
	if err != nil {
		t.Fatalf("AllArticles() error: %v", err)
	}
	if got := articles[0].Tags; len(got) != 1 || got[0] != "macro" {
		t.Errorf("tags after replace = %v, want [macro]", got)
	}
}

func TestSourceStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recent := testArticle("1", "t", now.Add(-time.Hour))
	old := testArticle("2", "t", now.Add(-48*time.Hour))
	other := testArticle("3", "t", now)
	other.Source = "xueqiu"
	for _, a := range []core.Article{recent, old, other} {
		if _, err := st.InsertArticle(ctx, a); err != nil {
			t.Fatalf("insert %s: %v", a.SourceID, err)
		}
	}

	stats, err := st.SourceStats(ctx)
	if err != nil {
		t.Fatalf("SourceStats() error: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d sources, want 2", len(stats))
	}
	if stats[0].Source != "hackernews" || stats[0].Count != 2 {
		t.Errorf("stats[0] = %+v, want hackernews with 2 articles first", stats[0])
	}
	if stats[0].Last24h != 1 {
		t.Errorf("hackernews last 24h = %d, want 1", stats[0].Last24h)
	}
}
