// Package store persists articles in SQLite. The UNIQUE(source, source_id)
// constraint is the single coordination point for dedup: ingest and tagging
// may run as separate processes against the same file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"parkintel/internal/core"
)

// ErrAlreadyScored is returned by SetRelevance when the target article has a
// relevance score, or does not exist. Scores transition unset -> set exactly
// once.
var ErrAlreadyScored = errors.New("article already scored or missing")

// Store is the SQLite-backed article store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "parkintel.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// initialize creates the necessary tables and indexes.
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		relevance_score INTEGER,
		published_at DATETIME,
		ingested_at DATETIME NOT NULL,
		UNIQUE (source, source_id)
	);`

	tagsTable := `
	CREATE TABLE IF NOT EXISTS article_tags (
		article_id INTEGER NOT NULL REFERENCES articles (id),
		tag TEXT NOT NULL,
		UNIQUE (article_id, tag)
	);`

	narrativeTagsTable := `
	CREATE TABLE IF NOT EXISTS article_narrative_tags (
		article_id INTEGER NOT NULL REFERENCES articles (id),
		tag TEXT NOT NULL,
		UNIQUE (article_id, tag)
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_source ON articles (source);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_ingested ON articles (ingested_at);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_unscored ON articles (ingested_at) WHERE relevance_score IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_article_tags_tag ON article_tags (tag);`,
	}

	stmts := append([]string{articlesTable, tagsTable, narrativeTagsTable}, indexes...)
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// InsertArticle inserts the article and its keyword tags as one transaction.
// It reports false when an article with the same (source, source_id) already
// exists; the conflict leaves no side effects.
func (s *Store) InsertArticle(ctx context.Context, a core.Article) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO articles (source, source_id, author, title, content, url, score, published_at, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, source_id) DO NOTHING`,
		a.Source, a.SourceID, a.Author, a.Title, a.Content, a.URL, a.Score,
		nullableTime(a.PublishedAt), a.IngestedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}

	for _, tag := range a.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO article_tags (article_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			id, tag,
		); err != nil {
			return false, fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit insert: %w", err)
	}
	return true, nil
}

// Unscored returns articles without a relevance score, oldest ingested
// first so repeated limited runs eventually cover the whole corpus.
// limit <= 0 means no limit.
func (s *Store) Unscored(ctx context.Context, limit int) ([]core.Article, error) {
	query := selectArticles + ` WHERE relevance_score IS NULL ORDER BY ingested_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryArticles(ctx, query, args...)
}

// SetRelevance records the classifier result for an article. The guard on
// relevance_score IS NULL makes the write first-wins: a second attempt
// returns ErrAlreadyScored and changes nothing.
func (s *Store) SetRelevance(ctx context.Context, id int64, score int, narrativeTags []string) error {
	if score < 1 || score > 5 {
		return fmt.Errorf("relevance score %d out of range 1..5", score)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin score update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE articles SET relevance_score = ? WHERE id = ? AND relevance_score IS NULL`,
		score, id,
	)
	if err != nil {
		return fmt.Errorf("update relevance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update relevance: %w", err)
	}
	if n == 0 {
		return ErrAlreadyScored
	}

	for _, tag := range narrativeTags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO article_narrative_tags (article_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			id, tag,
		); err != nil {
			return fmt.Errorf("insert narrative tag %q: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit score update: %w", err)
	}
	return nil
}

// ArticlesBetween returns articles with ingested_at in [from, to).
func (s *Store) ArticlesBetween(ctx context.Context, from, to time.Time) ([]core.Article, error) {
	query := selectArticles + ` WHERE ingested_at >= ? AND ingested_at < ? ORDER BY ingested_at ASC, id ASC`
	return s.queryArticles(ctx, query, from.UTC(), to.UTC())
}

// Latest returns the most recently ingested articles, optionally filtered
// by source and minimum relevance score.
func (s *Store) Latest(ctx context.Context, limit int, source string, minRelevance int) ([]core.Article, error) {
	query := selectArticles + ` WHERE 1=1`
	args := []any{}
	if source != "" {
		query += ` AND source = ?`
		args = append(args, source)
	}
	if minRelevance > 0 {
		query += ` AND relevance_score >= ?`
		args = append(args, minRelevance)
	}
	query += ` ORDER BY ingested_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	return s.queryArticles(ctx, query, args...)
}

// AllArticles returns the full corpus in ingest order. Intended for
// operator reprocessing (backfill-tags), not steady-state reads.
func (s *Store) AllArticles(ctx context.Context) ([]core.Article, error) {
	return s.queryArticles(ctx, selectArticles+` ORDER BY id ASC`)
}

// ReplaceTags rewrites the keyword tags of an article. This is the explicit
// operator reprocessing path; steady-state ingest never calls it.
func (s *Store) ReplaceTags(ctx context.Context, id int64, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin retag: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM article_tags WHERE article_id = ?`, id); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO article_tags (article_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			id, tag,
		); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit retag: %w", err)
	}
	return nil
}

// SourceStat summarizes one source's corpus footprint.
type SourceStat struct {
	Source          string    `json:"source"`
	Count           int       `json:"count"`
	Last24h         int       `json:"articles_last_24h"`
	LastIngestedAt  time.Time `json:"last_ingested_at"`
	LastPublishedAt time.Time `json:"latest_published_at"`
}

// SourceStats returns per-source counts and freshness.
func (s *Store) SourceStats(ctx context.Context) ([]SourceStat, error) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	rows, err := s.db.QueryContext(ctx, `
		SELECT source,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN ingested_at >= ? THEN 1 ELSE 0 END), 0),
		       MAX(ingested_at),
		       MAX(published_at)
		FROM articles
		GROUP BY source
		ORDER BY COUNT(*) DESC, source ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query source stats: %w", err)
	}
	defer rows.Close()

	var stats []SourceStat
	for rows.Next() {
		var st SourceStat
		var lastIngested, lastPublished sql.NullTime
		if err := rows.Scan(&st.Source, &st.Count, &st.Last24h, &lastIngested, &lastPublished); err != nil {
			return nil, fmt.Errorf("scan source stats: %w", err)
		}
		if lastIngested.Valid {
			st.LastIngestedAt = lastIngested.Time.UTC()
		}
		if lastPublished.Valid {
			st.LastPublishedAt = lastPublished.Time.UTC()
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

const selectArticles = `
	SELECT id, source, source_id, author, title, content, url, score, relevance_score, published_at, ingested_at
	FROM articles`

func (s *Store) queryArticles(ctx context.Context, query string, args ...any) ([]core.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		var a core.Article
		var relevance sql.NullInt64
		var published sql.NullTime
		if err := rows.Scan(
			&a.ID, &a.Source, &a.SourceID, &a.Author, &a.Title, &a.Content,
			&a.URL, &a.Score, &relevance, &published, &a.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if relevance.Valid {
			a.RelevanceScore = int(relevance.Int64)
		}
		if published.Valid {
			a.PublishedAt = published.Time.UTC()
		}
		a.IngestedAt = a.IngestedAt.UTC()
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}

	if err := s.attachTags(ctx, articles, "article_tags", func(a *core.Article, tag string) {
		a.Tags = append(a.Tags, tag)
	}); err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, articles, "article_narrative_tags", func(a *core.Article, tag string) {
		a.NarrativeTags = append(a.NarrativeTags, tag)
	}); err != nil {
		return nil, err
	}

	return articles, nil
}

// attachTags loads child-table rows for a batch of articles, in insertion
// order (rowid), chunked to stay under SQLite's parameter limit.
func (s *Store) attachTags(ctx context.Context, articles []core.Article, table string, add func(*core.Article, string)) error {
	if len(articles) == 0 {
		return nil
	}

	byID := make(map[int64]*core.Article, len(articles))
	ids := make([]int64, 0, len(articles))
	for i := range articles {
		byID[articles[i].ID] = &articles[i]
		ids = append(ids, articles[i].ID)
	}

	const chunkSize = 500
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := make([]byte, 0, len(chunk)*2)
		args := make([]any, 0, len(chunk))
		for i, id := range chunk {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, id)
		}

		query := fmt.Sprintf(
			`SELECT article_id, tag FROM %s WHERE article_id IN (%s) ORDER BY article_id, rowid`,
			table, placeholders,
		)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query %s: %w", table, err)
		}
		for rows.Next() {
			var id int64
			var tag string
			if err := rows.Scan(&id, &tag); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", table, err)
			}
			if a, ok := byID[id]; ok {
				add(a, tag)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate %s: %w", table, err)
		}
		rows.Close()
	}

	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
