package news

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/newsloom/newsloom/internal/geo"
)

// SQLiteStore implements ArticleStore and InteractionStore on an embedded
// SQLite database. It backs the single-binary development mode; production
// deployments use the Postgres stores. Categories are stored JSON-encoded,
// and predicates that SQLite cannot express cheaply (category membership,
// radius) are applied in-process via MatchesFilter.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the embedded database at path and ensures
// the schema exists. A single write connection avoids SQLITE_BUSY churn.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS articles (
			id               TEXT PRIMARY KEY,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			url              TEXT NOT NULL DEFAULT '',
			publication_date DATETIME NOT NULL,
			source_name      TEXT NOT NULL,
			category         TEXT NOT NULL DEFAULT '[]',
			relevance_score  REAL NOT NULL DEFAULT 0,
			latitude         REAL,
			longitude        REAL,
			summary          TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(publication_date DESC);

		CREATE TABLE IF NOT EXISTS interactions (
			id               TEXT PRIMARY KEY,
			article_id       TEXT NOT NULL,
			user_id          TEXT NOT NULL DEFAULT '',
			interaction_type TEXT NOT NULL,
			occurred_at      DATETIME NOT NULL,
			latitude         REAL,
			longitude        REAL
		);
		CREATE INDEX IF NOT EXISTS idx_interactions_article ON interactions(article_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert stores a new article.
func (s *SQLiteStore) Insert(ctx context.Context, a Article) error {
	cats, err := json.Marshal(a.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	var lat, lon sql.NullFloat64
	if a.Location != nil {
		lat = sql.NullFloat64{Float64: a.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: a.Location.Lon, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO articles
			(id, title, description, url, publication_date, source_name,
			 category, relevance_score, latitude, longitude, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Description, a.URL, a.PublishedAt.UTC().Format(time.RFC3339),
		a.Source, string(cats), a.Relevance, lat, lon, a.Summary)
	if err != nil {
		return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
	}
	return nil
}

// GetByID returns the article with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, url, publication_date, source_name,
		       category, relevance_score, latitude, longitude, summary
		FROM articles WHERE id = ?`, id)

	a, err := s.scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article %s: %w", id, err)
	}
	return a, nil
}

// Query returns articles matching every set predicate in the filter.
func (s *SQLiteStore) Query(ctx context.Context, f ArticleFilter) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, url, publication_date, source_name,
		       category, relevance_score, latitude, longitude, summary
		FROM articles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := s.scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		if !MatchesFilter(a, f) {
			continue
		}
		out = append(out, *a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, rows.Err()
}

// MissingSummary returns up to limit articles without a summary.
func (s *SQLiteStore) MissingSummary(ctx context.Context, limit int) ([]Article, error) {
	query := `
		SELECT id, title, description, url, publication_date, source_name,
		       category, relevance_score, latitude, longitude, summary
		FROM articles WHERE summary = '' ORDER BY publication_date DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsummarized articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := s.scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SetSummary populates the summary of an existing article.
func (s *SQLiteStore) SetSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("failed to set summary for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Append records a new interaction event.
func (s *SQLiteStore) Append(ctx context.Context, ev InteractionEvent) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("unknown interaction kind %q", ev.Kind)
	}

	var lat, lon sql.NullFloat64
	if ev.Location != nil {
		lat = sql.NullFloat64{Float64: ev.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: ev.Location.Lon, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions
			(id, article_id, user_id, interaction_type, occurred_at, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ArticleID, ev.UserID, string(ev.Kind),
		ev.OccurredAt.UTC().Format(time.RFC3339), lat, lon)
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	return nil
}

// EventsFor returns all interaction events for an article.
func (s *SQLiteStore) EventsFor(ctx context.Context, articleID string) ([]InteractionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, user_id, interaction_type, occurred_at, latitude, longitude
		FROM interactions WHERE article_id = ? ORDER BY occurred_at`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions for %s: %w", articleID, err)
	}
	defer rows.Close()

	var out []InteractionEvent
	for rows.Next() {
		var (
			ev       InteractionEvent
			kind     string
			occurred string
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&ev.ID, &ev.ArticleID, &ev.UserID, &kind,
			&occurred, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		ev.Kind = InteractionKind(kind)
		if ev.OccurredAt, err = time.Parse(time.RFC3339, occurred); err != nil {
			return nil, fmt.Errorf("failed to parse interaction timestamp: %w", err)
		}
		if lat.Valid && lon.Valid {
			ev.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns the total number of stored events.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) scanArticle(row rowScanner) (*Article, error) {
	var (
		a         Article
		published string
		cats      string
		lat, lon  sql.NullFloat64
	)
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.URL, &published,
		&a.Source, &cats, &a.Relevance, &lat, &lon, &a.Summary)
	if err != nil {
		return nil, err
	}
	if a.PublishedAt, err = time.Parse(time.RFC3339, published); err != nil {
		return nil, fmt.Errorf("failed to parse publication date: %w", err)
	}
	if err := json.Unmarshal([]byte(cats), &a.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	if lat.Valid && lon.Valid {
		a.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	return &a, nil
}
