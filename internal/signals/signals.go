// Package signals computes the comparative analytics report over two
// adjacent, non-overlapping time windows ending at "now". Windows are keyed
// off ingested_at: a source backfilling old posts lands in the current
// window instead of rewriting past ones. The computation is read-only,
// stateless, and deterministic: a fixed corpus and a fixed now always
// produce the same report, byte for byte.
package signals

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"parkintel/internal/core"
)

// Momentum label bands: above +0.2 is accelerating, below -0.2 is
// decelerating.
const momentumBand = 0.2

// defaultTopArticles caps the top-articles list.
const defaultTopArticles = 20

// Reader is the slice of the store the aggregator needs.
type Reader interface {
	ArticlesBetween(ctx context.Context, from, to time.Time) ([]core.Article, error)
}

// Options filters and sizes the report.
type Options struct {
	Source          string // restrict both windows to one source, "" for all
	MinRelevance    int    // floor for the top-articles list, default 1
	TopArticleLimit int    // default 20
}

// TopicHeat compares one keyword category across the two windows.
type TopicHeat struct {
	Category string  `json:"category"`
	Current  int     `json:"current"`
	Baseline int     `json:"baseline"`
	Delta    int     `json:"delta"`
	Momentum float64 `json:"momentum"`
	New      bool    `json:"new"`   // baseline was empty
	Label    string  `json:"label"` // accelerating | stable | decelerating
}

// NarrativeMomentum compares one narrative tag across the two windows,
// within the classifier-scored subset.
type NarrativeMomentum struct {
	NarrativeTag string   `json:"narrative_tag"`
	Current      int      `json:"current"`
	Baseline     int      `json:"baseline"`
	Delta        int      `json:"delta"`
	AvgRelevance float64  `json:"avg_relevance"`
	Sources      []string `json:"sources"`
}

// RelevanceDistribution is the current-window score histogram.
type RelevanceDistribution struct {
	Scores   [5]int `json:"scores"` // index 0 holds score 1
	Unscored int    `json:"unscored"`
}

// SourceActivity summarizes one source's current-window volume.
type SourceActivity struct {
	Source       string  `json:"source"`
	Count        int     `json:"count"`
	AvgRelevance float64 `json:"avg_relevance"` // 0 when nothing is scored
}

// Report is the full signal dashboard payload.
type Report struct {
	GeneratedAt           time.Time             `json:"generated_at"`
	WindowHours           int                   `json:"window_hours"`
	CompareWindowHours    int                   `json:"compare_window_hours"`
	ArticleCount          int                   `json:"article_count"`
	HighRelevanceCount    int                   `json:"high_relevance_count"`
	TopicHeat             []TopicHeat           `json:"topic_heat"`
	NarrativeMomentum     []NarrativeMomentum   `json:"narrative_momentum"`
	RelevanceDistribution RelevanceDistribution `json:"relevance_distribution"`
	SourceActivity        []SourceActivity      `json:"source_activity"`
	TopArticles           []core.Article        `json:"top_articles"`
}

// Compute builds the report. The current window is [now-window, now), the
// baseline window is [now-window-compareWindow, now-window). Empty windows
// yield a zero report, not an error.
func Compute(ctx context.Context, r Reader, now time.Time, window, compareWindow time.Duration, opts Options) (*Report, error) {
	if window <= 0 || compareWindow <= 0 {
		return nil, fmt.Errorf("window and compare window must be positive")
	}
	if opts.MinRelevance < 1 {
		opts.MinRelevance = 1
	}
	if opts.TopArticleLimit <= 0 {
		opts.TopArticleLimit = defaultTopArticles
	}

	now = now.UTC()
	currentStart := now.Add(-window)
	baselineStart := currentStart.Add(-compareWindow)

	current, err := r.ArticlesBetween(ctx, currentStart, now)
	if err != nil {
		return nil, fmt.Errorf("load current window: %w", err)
	}
	baseline, err := r.ArticlesBetween(ctx, baselineStart, currentStart)
	if err != nil {
		return nil, fmt.Errorf("load baseline window: %w", err)
	}

	current = filterSource(current, opts.Source)
	baseline = filterSource(baseline, opts.Source)

	report := &Report{
		GeneratedAt:        now,
		WindowHours:        int(window / time.Hour),
		CompareWindowHours: int(compareWindow / time.Hour),
		ArticleCount:       len(current),
		TopicHeat:          topicHeat(current, baseline),
		NarrativeMomentum:  narrativeMomentum(current, baseline),
		SourceActivity:     sourceActivity(current),
		TopArticles:        topArticles(current, opts.MinRelevance, opts.TopArticleLimit),
	}

	for _, a := range current {
		if a.Scored() {
			report.RelevanceDistribution.Scores[a.RelevanceScore-1]++
			if a.RelevanceScore >= 4 {
				report.HighRelevanceCount++
			}
		} else {
			report.RelevanceDistribution.Unscored++
		}
	}

	return report, nil
}

func filterSource(articles []core.Article, source string) []core.Article {
	if source == "" {
		return articles
	}
	filtered := articles[:0:0]
	for _, a := range articles {
		if a.Source == source {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

func tagCounts(articles []core.Article) map[string]int {
	counts := make(map[string]int)
	for _, a := range articles {
		for _, tag := range a.Tags {
			counts[tag]++
		}
	}
	return counts
}

// topicHeat covers every category seen in either window, sorted by current
// count descending, names ascending on ties.
func topicHeat(current, baseline []core.Article) []TopicHeat {
	cur := tagCounts(current)
	prev := tagCounts(baseline)

	seen := make(map[string]struct{}, len(cur)+len(prev))
	for tag := range cur {
		seen[tag] = struct{}{}
	}
	for tag := range prev {
		seen[tag] = struct{}{}
	}

	heat := make([]TopicHeat, 0, len(seen))
	for tag := range seen {
		c, p := cur[tag], prev[tag]
		entry := TopicHeat{Category: tag, Current: c, Baseline: p, Delta: c - p}
		switch {
		case p > 0:
			entry.Momentum = round2(float64(c-p) / float64(p))
		case c > 0:
			entry.Momentum = 1.0
			entry.New = true
		}
		switch {
		case entry.Momentum > momentumBand:
			entry.Label = "accelerating"
		case entry.Momentum < -momentumBand:
			entry.Label = "decelerating"
		default:
			entry.Label = "stable"
		}
		heat = append(heat, entry)
	}

	sort.Slice(heat, func(i, j int) bool {
		if heat[i].Current != heat[j].Current {
			return heat[i].Current > heat[j].Current
		}
		return heat[i].Category < heat[j].Category
	})
	return heat
}

// narrativeMomentum ranks narrative tags from the scored subset of the
// current window by absolute increase over the baseline window.
func narrativeMomentum(current, baseline []core.Article) []NarrativeMomentum {
	type acc struct {
		count          int
		totalRelevance int
		scoredCount    int
		sources        map[string]struct{}
	}

	currentAcc := make(map[string]*acc)
	for _, a := range current {
		for _, tag := range a.NarrativeTags {
			entry := currentAcc[tag]
			if entry == nil {
				entry = &acc{sources: make(map[string]struct{})}
				currentAcc[tag] = entry
			}
			entry.count++
			entry.sources[a.Source] = struct{}{}
			if a.Scored() {
				entry.totalRelevance += a.RelevanceScore
				entry.scoredCount++
			}
		}
	}

	baselineCounts := make(map[string]int)
	for _, a := range baseline {
		for _, tag := range a.NarrativeTags {
			baselineCounts[tag]++
		}
	}

	momentum := make([]NarrativeMomentum, 0, len(currentAcc))
	for tag, entry := range currentAcc {
		m := NarrativeMomentum{
			NarrativeTag: tag,
			Current:      entry.count,
			Baseline:     baselineCounts[tag],
			Delta:        entry.count - baselineCounts[tag],
			Sources:      sortedKeys(entry.sources),
		}
		if entry.scoredCount > 0 {
			m.AvgRelevance = round1(float64(entry.totalRelevance) / float64(entry.scoredCount))
		}
		momentum = append(momentum, m)
	}

	sort.Slice(momentum, func(i, j int) bool {
		if momentum[i].Delta != momentum[j].Delta {
			return momentum[i].Delta > momentum[j].Delta
		}
		return momentum[i].NarrativeTag < momentum[j].NarrativeTag
	})
	return momentum
}

func sourceActivity(current []core.Article) []SourceActivity {
	type acc struct {
		count          int
		totalRelevance int
		scoredCount    int
	}
	bySource := make(map[string]*acc)
	for _, a := range current {
		entry := bySource[a.Source]
		if entry == nil {
			entry = &acc{}
			bySource[a.Source] = entry
		}
		entry.count++
		if a.Scored() {
			entry.totalRelevance += a.RelevanceScore
			entry.scoredCount++
		}
	}

	activity := make([]SourceActivity, 0, len(bySource))
	for source, entry := range bySource {
		sa := SourceActivity{Source: source, Count: entry.count}
		if entry.scoredCount > 0 {
			sa.AvgRelevance = round1(float64(entry.totalRelevance) / float64(entry.scoredCount))
		}
		activity = append(activity, sa)
	}

	sort.Slice(activity, func(i, j int) bool {
		if activity[i].Count != activity[j].Count {
			return activity[i].Count > activity[j].Count
		}
		return activity[i].Source < activity[j].Source
	})
	return activity
}

func topArticles(current []core.Article, minRelevance, limit int) []core.Article {
	top := make([]core.Article, 0)
	for _, a := range current {
		if a.Scored() && a.RelevanceScore >= minRelevance {
			top = append(top, a)
		}
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].RelevanceScore != top[j].RelevanceScore {
			return top[i].RelevanceScore > top[j].RelevanceScore
		}
		if !top[i].IngestedAt.Equal(top[j].IngestedAt) {
			return top[i].IngestedAt.After(top[j].IngestedAt)
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
