// Package core defines the canonical types shared across the pipeline.
package core

import "time"

// RawRecord is what a source adapter emits: a source-native post translated
// into the common field set, before validation, dedup, or tagging.
type RawRecord struct {
	Source      string    `json:"source"`       // Source identifier (e.g., "hackernews", "substack")
	SourceID    string    `json:"source_id"`    // Unique within the source; half of the dedup key
	Author      string    `json:"author"`       // Author or publication name, may be empty
	Title       string    `json:"title"`        // Post title
	Content     string    `json:"content"`      // Full body text (never truncated in storage)
	URL         string    `json:"url"`          // Canonical link, may be empty
	Score       int       `json:"score"`        // Source-native score (e.g., HN points), 0 if none
	PublishedAt time.Time `json:"published_at"` // Source-reported publish time
}

// Article is the canonical persisted unit. (Source, SourceID) is unique
// across the corpus. Tags are written once at ingest; RelevanceScore and
// NarrativeTags are written at most once by the classifier.
type Article struct {
	ID             int64     `json:"id"`
	Source         string    `json:"source"`
	SourceID       string    `json:"source_id"`
	Author         string    `json:"author"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	URL            string    `json:"url"`
	Tags           []string  `json:"tags"`            // Keyword categories, set at ingest
	Score          int       `json:"score"`           // Source-native score
	RelevanceScore int       `json:"relevance_score"` // 1..5 once scored, 0 while unscored
	NarrativeTags  []string  `json:"narrative_tags"`  // Classifier narrative labels, empty until scored
	PublishedAt    time.Time `json:"published_at"`
	IngestedAt     time.Time `json:"ingested_at"` // Set at insert; windows key off this
}

// Scored reports whether the classifier has rated this article.
func (a Article) Scored() bool {
	return a.RelevanceScore >= 1 && a.RelevanceScore <= 5
}
