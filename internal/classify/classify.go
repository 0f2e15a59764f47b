// Package classify runs the asynchronous LLM tagging pass: it selects
// unscored articles, sends them to an external classifier in rate-limited
// batches, and writes back relevance scores and narrative tags. The pass is
// resumable by construction: scored articles drop out of the selection, so
// an interrupted run picks up where it left off.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"parkintel/internal/core"
	"parkintel/internal/store"
)

// systemPrompt frames the classifier as a trading analyst and pins the
// response contract to a bare JSON array.
const systemPrompt = `You are a trading analyst assistant. For each article, you must:

1. Rate its **relevance_score** (1-5) for an active multi-market trader:
   - 5: Directly actionable — earnings surprise, policy change, major breakout
   - 4: High relevance — sector trend, significant macro data, important KOL thesis
   - 3: Moderate — general market commentary, industry news
   - 2: Low — tangentially related to markets
   - 1: Noise — not useful for trading decisions

2. Generate **narrative_tags** — short descriptive phrases (2-4 words each) capturing the article's trading-relevant narrative. Examples: "nvidia-earnings-beat", "fed-rate-pause", "btc-etf-inflows", "china-stimulus-hope".

Respond with a JSON array. Each element must have:
- "id": the article id (integer)
- "relevance_score": integer 1-5
- "narrative_tags": list of 1-3 short narrative tag strings

Example response:
[
  {"id": 1, "relevance_score": 4, "narrative_tags": ["nvidia-earnings-beat", "ai-capex-growth"]},
  {"id": 2, "relevance_score": 2, "narrative_tags": ["general-market-commentary"]}
]

Respond ONLY with the JSON array, no other text.`

// promptContentLimit bounds how much article body goes into the prompt.
const promptContentLimit = 1000

// maxNarrativeTags caps narrative tags kept per article.
const maxNarrativeTags = 5

// Result is one validated classifier verdict.
type Result struct {
	ArticleID      int64
	RelevanceScore int // always 1..5
	NarrativeTags  []string
}

// ClassificationError reports a single article the classifier could not
// score. It is logged and never aborts the batch.
type ClassificationError struct {
	ArticleID int64
	Reason    string
	Err       error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classify article %d: %s: %v", e.ArticleID, e.Reason, e.Err)
	}
	return fmt.Sprintf("classify article %d: %s", e.ArticleID, e.Reason)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Classifier scores a batch of articles via an external service. The
// service is untrusted: implementations must return only validated
// results, dropping anything malformed rather than coercing it.
type Classifier interface {
	Classify(ctx context.Context, articles []core.Article) ([]Result, error)
}

// Scorer is the slice of the store the tagging pass needs.
type Scorer interface {
	Unscored(ctx context.Context, limit int) ([]core.Article, error)
	SetRelevance(ctx context.Context, id int64, score int, narrativeTags []string) error
}

// RunStats summarizes one tagging run.
type RunStats struct {
	Selected int `json:"selected"`
	Scored   int `json:"scored"`
	Failed   int `json:"failed"`
}

// Tagger drives the classifier over the unscored backlog.
type Tagger struct {
	store      Scorer
	classifier Classifier
	limiter    *rate.Limiter
	batchSize  int
	logger     *slog.Logger
}

// Options tunes a Tagger.
type Options struct {
	BatchSize   int           // articles per classifier call, default 10
	MinInterval time.Duration // pause between classifier calls, default 2s
}

// NewTagger builds a tagging pass over the given store and classifier.
func NewTagger(st Scorer, classifier Classifier, opts Options, logger *slog.Logger) *Tagger {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = 2 * time.Second
	}
	return &Tagger{
		store:      st,
		classifier: classifier,
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		batchSize:  opts.BatchSize,
		logger:     logger,
	}
}

// Run selects up to limit unscored articles (limit <= 0 selects the whole
// backlog) oldest-first and classifies them batch by batch. A failed batch
// or item is logged and skipped; those articles stay unscored and will be
// selected again next run. Cancelling ctx stops between calls and leaves
// the store valid.
func (t *Tagger) Run(ctx context.Context, limit int) (RunStats, error) {
	articles, err := t.store.Unscored(ctx, limit)
	if err != nil {
		return RunStats{}, fmt.Errorf("select unscored articles: %w", err)
	}

	stats := RunStats{Selected: len(articles)}
	if len(articles) == 0 {
		return stats, nil
	}
	t.logger.Info("classifying unscored articles", "count", len(articles), "batch_size", t.batchSize)

	for start := 0; start < len(articles); start += t.batchSize {
		end := start + t.batchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]

		if err := t.limiter.Wait(ctx); err != nil {
			return stats, err
		}

		results, err := t.classifier.Classify(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			t.logger.Warn("classifier call failed, batch left unscored",
				"batch_start", start, "batch_size", len(batch), "error", err.Error())
			stats.Failed += len(batch)
			continue
		}

		byID := make(map[int64]Result, len(results))
		for _, r := range results {
			byID[r.ArticleID] = r
		}

		for _, a := range batch {
			r, ok := byID[a.ID]
			if !ok {
				cerr := &ClassificationError{ArticleID: a.ID, Reason: "no verdict in classifier response"}
				t.logger.Warn("article left unscored", "error", cerr.Error())
				stats.Failed++
				continue
			}

			err := t.store.SetRelevance(ctx, a.ID, r.RelevanceScore, r.NarrativeTags)
			switch {
			case errors.Is(err, store.ErrAlreadyScored):
				// Another run claimed it first; the score stands.
				t.logger.Debug("article scored elsewhere", "id", a.ID)
			case err != nil:
				return stats, fmt.Errorf("persist score for article %d: %w", a.ID, err)
			default:
				stats.Scored++
			}
		}

		t.logger.Info("batch classified",
			"batch_start", start, "scored", stats.Scored, "failed", stats.Failed)
	}

	return stats, nil
}

// buildPrompt renders the batch into the user message the classifier sees.
func buildPrompt(articles []core.Article) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nHere are the articles to score:\n\n")
	for i, a := range articles {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		title := a.Title
		if title == "" {
			title = "(no title)"
		}
		fmt.Fprintf(&b, "[Article ID=%d, source=%s]\nTitle: %s\nContent: %s\n",
			a.ID, a.Source, title, truncateRunes(a.Content, promptContentLimit))
	}
	return b.String()
}

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")
	bareArrayRe   = regexp.MustCompile(`(?s)\[.*\]`)
)

// rawResult mirrors the classifier's JSON contract. Integer fields are
// strict: a fractional score fails to unmarshal instead of being coerced.
type rawResult struct {
	ID             int64    `json:"id"`
	RelevanceScore int      `json:"relevance_score"`
	NarrativeTags  []string `json:"narrative_tags"`
}

// parseResults extracts a JSON array from classifier output that may be
// wrapped in prose or a markdown fence, then validates each element.
// Invalid elements are dropped; an unparseable response is an error.
func parseResults(text string) ([]Result, error) {
	raw, err := extractJSONArray(text)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.RelevanceScore < 1 || r.RelevanceScore > 5 {
			continue
		}
		tags := r.NarrativeTags
		if len(tags) > maxNarrativeTags {
			tags = tags[:maxNarrativeTags]
		}
		results = append(results, Result{
			ArticleID:      r.ID,
			RelevanceScore: r.RelevanceScore,
			NarrativeTags:  tags,
		})
	}
	return results, nil
}

func extractJSONArray(text string) ([]rawResult, error) {
	text = strings.TrimSpace(text)

	var raw []rawResult
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		return raw, nil
	}

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &raw); err == nil {
			return raw, nil
		}
	}

	if m := bareArrayRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &raw); err == nil {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("no JSON array found in classifier response")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
