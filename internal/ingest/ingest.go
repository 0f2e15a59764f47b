// Package ingest implements the dedup/ingest gate: the sole writer of new
// articles. It validates raw records, attaches keyword tags, and inserts
// atomically, relying on the store's uniqueness constraint for dedup.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parkintel/internal/core"
	"parkintel/internal/tagger"
)

// Status is the outcome of one ingest call.
type Status string

const (
	// Inserted means a new row was created.
	Inserted Status = "inserted"
	// SkippedDuplicate means an article with the same (source, source_id)
	// already exists; the call had no side effects.
	SkippedDuplicate Status = "skipped_duplicate"
)

// ValidationError reports a raw record the gate refuses to store.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("raw record missing required field %q", e.Field)
}

// Inserter is the slice of the store the gate writes through.
type Inserter interface {
	InsertArticle(ctx context.Context, a core.Article) (bool, error)
}

// Gate validates, tags, and persists raw records. Safe for concurrent use:
// all coordination lives in the store's uniqueness constraint.
type Gate struct {
	store  Inserter
	logger *slog.Logger
	now    func() time.Time
}

// NewGate wires the gate to a store.
func NewGate(store Inserter, logger *slog.Logger) *Gate {
	return &Gate{store: store, logger: logger, now: time.Now}
}

// Ingest processes one raw record. A conflict on (source, source_id) is a
// skip, never an error.
func (g *Gate) Ingest(ctx context.Context, rec core.RawRecord) (Status, error) {
	if rec.Source == "" {
		return "", &ValidationError{Field: "source"}
	}
	if rec.SourceID == "" {
		return "", &ValidationError{Field: "source_id"}
	}

	article := core.Article{
		Source:      rec.Source,
		SourceID:    rec.SourceID,
		Author:      rec.Author,
		Title:       rec.Title,
		Content:     rec.Content,
		URL:         rec.URL,
		Score:       rec.Score,
		Tags:        tagger.Tag(rec.Title, rec.Content),
		PublishedAt: rec.PublishedAt,
		IngestedAt:  g.now().UTC(),
	}

	inserted, err := g.store.InsertArticle(ctx, article)
	if err != nil {
		return "", fmt.Errorf("ingest %s/%s: %w", rec.Source, rec.SourceID, err)
	}
	if !inserted {
		g.logger.Debug("duplicate skipped", "source", rec.Source, "source_id", rec.SourceID)
		return SkippedDuplicate, nil
	}

	g.logger.Debug("article ingested",
		"source", rec.Source, "source_id", rec.SourceID, "tags", article.Tags)
	return Inserted, nil
}

// IngestAll runs every record through the gate, counting outcomes. A
// validation failure is logged and skipped; a store failure aborts, since
// the store being down is fatal for the run.
func (g *Gate) IngestAll(ctx context.Context, recs []core.RawRecord) (inserted, skipped int, err error) {
	for _, rec := range recs {
		status, err := g.Ingest(ctx, rec)
		if err != nil {
			if _, ok := err.(*ValidationError); ok {
				g.logger.Warn("invalid raw record dropped", "source", rec.Source, "error", err.Error())
				continue
			}
			return inserted, skipped, err
		}
		switch status {
		case Inserted:
			inserted++
		case SkippedDuplicate:
			skipped++
		}
	}
	return inserted, skipped, nil
}
