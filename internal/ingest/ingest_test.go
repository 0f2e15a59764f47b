package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"parkintel/internal/core"
)

type fakeInserter struct {
	articles []core.Article
	existing map[string]bool
	err      error
}

func (f *fakeInserter) InsertArticle(ctx context.Context, a core.Article) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := a.Source + "/" + a.SourceID
	if f.existing[key] {
		return false, nil
	}
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	f.existing[key] = true
	f.articles = append(f.articles, a)
	return true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(source, sourceID string) core.RawRecord {
	return core.RawRecord{
		Source:   source,
		SourceID: sourceID,
		Title:    "Bitcoin rally continues",
		Content:  "Spot ETF inflows keep climbing.",
		URL:      "https://example.com/post",
	}
}

func TestIngestTagsAndTimestamps(t *testing.T) {
	ins := &fakeInserter{}
	gate := NewGate(ins, discardLogger())
	fixed := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	gate.now = func() time.Time { return fixed }

	status, err := gate.Ingest(context.Background(), record("hackernews", "hn_1"))
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if status != Inserted {
		t.Errorf("status = %q, want %q", status, Inserted)
	}
	if len(ins.articles) != 1 {
		t.Fatalf("stored %d articles, want 1", len(ins.articles))
	}

	a := ins.articles[0]
	if !a.IngestedAt.Equal(fixed) {
		t.Errorf("IngestedAt = %v, want %v", a.IngestedAt, fixed)
	}
	if len(a.Tags) == 0 || a.Tags[0] != "crypto" {
		t.Errorf("tags = %v, want crypto first", a.Tags)
	}
}

func TestIngestReportsDuplicate(t *testing.T) {
	ins := &fakeInserter{}
	gate := NewGate(ins, discardLogger())
	ctx := context.Background()

	if _, err := gate.Ingest(ctx, record("hackernews", "hn_1")); err != nil {
		t.Fatalf("first Ingest() error: %v", err)
	}
	status, err := gate.Ingest(ctx, record("hackernews", "hn_1"))
	if err != nil {
		t.Fatalf("second Ingest() error: %v", err)
	}
	if status != SkippedDuplicate {
		t.Errorf("status = %q, want %q", status, SkippedDuplicate)
	}
}

func TestIngestValidation(t *testing.T) {
	gate := NewGate(&fakeInserter{}, discardLogger())
	ctx := context.Background()

	var verr *ValidationError
	if _, err := gate.Ingest(ctx, record("", "id")); !errors.As(err, &verr) || verr.Field != "source" {
		t.Errorf("missing source error = %v, want ValidationError on source", err)
	}
	if _, err := gate.Ingest(ctx, record("hackernews", "")); !errors.As(err, &verr) || verr.Field != "source_id" {
		t.Errorf("missing source_id error = %v, want ValidationError on source_id", err)
	}
}

func TestIngestAllSkipsInvalidRecords(t *testing.T) {
	ins := &fakeInserter{}
	gate := NewGate(ins, discardLogger())

	recs := []core.RawRecord{
		record("hackernews", "hn_1"),
		record("", "bad"),
		record("hackernews", "hn_1"), // duplicate
		record("xueqiu", "xq_1"),
	}
	inserted, skipped, err := gate.IngestAll(context.Background(), recs)
	if err != nil {
		t.Fatalf("IngestAll() error: %v", err)
	}
	if inserted != 2 || skipped != 1 {
		t.Errorf("inserted=%d skipped=%d, want 2 and 1", inserted, skipped)
	}
}

func TestIngestAllAbortsOnStoreFailure(t *testing.T) {
	ins := &fakeInserter{err: errors.New("disk full")}
	gate := NewGate(ins, discardLogger())

	_, _, err := gate.IngestAll(context.Background(), []core.RawRecord{record("hackernews", "hn_1")})
	if err == nil {
		t.Fatal("IngestAll() = nil error, want store failure")
	}
}
