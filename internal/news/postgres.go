package news

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/tracing"
)

// PostgresArticleStore implements ArticleStore on PostgreSQL.
// Categories are stored as a text[] column; radius predicates are applied
// in-process after a location IS NOT NULL pre-filter, since the schema does
// not assume PostGIS.
type PostgresArticleStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresArticleStore creates a PostgresArticleStore.
func NewPostgresArticleStore(db *sql.DB, logger *slog.Logger) *PostgresArticleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresArticleStore{db: db, logger: logger}
}

// articlesSchema creates the articles table if missing.
const articlesSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id               UUID PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	url              TEXT NOT NULL DEFAULT '',
	publication_date TIMESTAMPTZ NOT NULL,
	source_name      TEXT NOT NULL,
	category         TEXT[] NOT NULL DEFAULT '{}',
	relevance_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	summary          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles (lower(source_name));
CREATE INDEX IF NOT EXISTS idx_articles_relevance ON articles (relevance_score DESC);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles (publication_date DESC);
`

// interactionsSchema creates the interactions table if missing.
const interactionsSchema = `
CREATE TABLE IF NOT EXISTS interactions (
	id               UUID PRIMARY KEY,
	article_id       UUID NOT NULL,
	user_id          TEXT NOT NULL DEFAULT '',
	interaction_type TEXT NOT NULL,
	occurred_at      TIMESTAMPTZ NOT NULL,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_interactions_article ON interactions (article_id);
CREATE INDEX IF NOT EXISTS idx_interactions_occurred ON interactions (occurred_at DESC);
`

// EnsureSchema creates the articles table and its indexes if they do not
// exist. Safe to call on every start.
func (s *PostgresArticleStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, articlesSchema); err != nil {
		return fmt.Errorf("failed to ensure articles schema: %w", err)
	}
	return nil
}

// Insert stores a new article.
func (s *PostgresArticleStore) Insert(ctx context.Context, a Article) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	var lat, lon sql.NullFloat64
	if a.Location != nil {
		lat = sql.NullFloat64{Float64: a.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: a.Location.Lon, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO articles
			(id, title, description, url, publication_date, source_name,
			 category, relevance_score, latitude, longitude, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.Title, a.Description, a.URL, a.PublishedAt, a.Source,
		pq.Array(a.Categories), a.Relevance, lat, lon, a.Summary)
	if err != nil {
		return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
	}
	return nil
}

// GetByID returns the article with the given ID, or ErrNotFound.
func (s *PostgresArticleStore) GetByID(ctx context.Context, id string) (*Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, url, publication_date, source_name,
		       category, relevance_score, latitude, longitude, summary
		FROM articles WHERE id = $1`, id)

	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article %s: %w", id, err)
	}
	return a, nil
}

// Query returns articles matching every set predicate in the filter.
// SQL applies everything except the radius, which needs haversine distance
// and is evaluated in-process over the location-bearing candidates.
func (s *PostgresArticleStore) Query(ctx context.Context, f ArticleFilter) (articles []Article, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "articles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(category) c WHERE lower(c) = lower(%s))", arg(f.Category)))
	}
	if f.Source != "" {
		conds = append(conds, fmt.Sprintf("source_name ILIKE %s", arg("%"+f.Source+"%")))
	}
	if f.Text != "" {
		var termConds []string
		for _, term := range strings.Fields(f.Text) {
			p := arg("%" + term + "%")
			termConds = append(termConds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
		}
		conds = append(conds, "("+strings.Join(termConds, " OR ")+")")
	}
	if f.MinScore != nil {
		conds = append(conds, fmt.Sprintf("relevance_score >= %s", arg(*f.MinScore)))
	}
	if f.MaxScore != nil {
		conds = append(conds, fmt.Sprintf("relevance_score <= %s", arg(*f.MaxScore)))
	}
	if f.RequireLocation || (f.Center != nil && f.RadiusKm > 0) {
		conds = append(conds, "latitude IS NOT NULL AND longitude IS NOT NULL")
	}

	query := `
		SELECT id, title, description, url, publication_date, source_name,
		       category, relevance_score, latitude, longitude, summary
		FROM articles`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	// The radius pass below can discard rows, so the SQL limit is only
	// applied when no radius predicate is present.
	if f.Limit > 0 && (f.Center == nil || f.RadiusKm <= 0) {
		query += fmt.Sprintf(" LIMIT %s", arg(f.Limit))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		if f.Center != nil && f.RadiusKm > 0 {
			if !a.HasLocation() || geo.DistanceKm(*f.Center, *a.Location) > f.RadiusKm {
				continue
			}
		}
		out = append(out, *a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return out, nil
}

// MissingSummary returns up to limit articles without a summary.
func (s *PostgresArticleStore) MissingSummary(ctx context.Context, limit int) ([]Article, error) {
	query := `
		SELECT id, title, description, url, publication_date, source_name,
		       category, relevance_score, latitude, longitude, summary
		FROM articles WHERE summary = '' ORDER BY publication_date DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsummarized articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SetSummary populates the summary of an existing article.
func (s *PostgresArticleStore) SetSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET summary = $2 WHERE id = $1`, id, summary)
	if err != nil {
		return fmt.Errorf("failed to set summary for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanArticle.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a        Article
		cats     pq.StringArray
		lat, lon sql.NullFloat64
	)
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.URL, &a.PublishedAt,
		&a.Source, &cats, &a.Relevance, &lat, &lon, &a.Summary)
	if err != nil {
		return nil, err
	}
	a.Categories = []string(cats)
	if lat.Valid && lon.Valid {
		a.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	return &a, nil
}

// PostgresInteractionStore implements InteractionStore on PostgreSQL.
type PostgresInteractionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresInteractionStore creates a PostgresInteractionStore.
func NewPostgresInteractionStore(db *sql.DB, logger *slog.Logger) *PostgresInteractionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresInteractionStore{db: db, logger: logger}
}

// EnsureSchema creates the interactions table and its indexes if they do not
// exist. Safe to call on every start.
func (s *PostgresInteractionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, interactionsSchema); err != nil {
		return fmt.Errorf("failed to ensure interactions schema: %w", err)
	}
	return nil
}

// Append records a new interaction event.
func (s *PostgresInteractionStore) Append(ctx context.Context, ev InteractionEvent) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "interactions", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if !ev.Kind.Valid() {
		return fmt.Errorf("unknown interaction kind %q", ev.Kind)
	}

	var lat, lon sql.NullFloat64
	if ev.Location != nil {
		lat = sql.NullFloat64{Float64: ev.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: ev.Location.Lon, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interactions
			(id, article_id, user_id, interaction_type, occurred_at, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.ArticleID, ev.UserID, string(ev.Kind), ev.OccurredAt, lat, lon)
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	return nil
}

// EventsFor returns all interaction events for an article.
func (s *PostgresInteractionStore) EventsFor(ctx context.Context, articleID string) ([]InteractionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, user_id, interaction_type, occurred_at, latitude, longitude
		FROM interactions WHERE article_id = $1 ORDER BY occurred_at`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions for %s: %w", articleID, err)
	}
	defer rows.Close()

	var out []InteractionEvent
	for rows.Next() {
		var (
			ev       InteractionEvent
			kind     string
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&ev.ID, &ev.ArticleID, &ev.UserID, &kind,
			&ev.OccurredAt, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		ev.Kind = InteractionKind(kind)
		if lat.Valid && lon.Valid {
			ev.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns the total number of stored events.
func (s *PostgresInteractionStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return n, nil
}
