package news

import (
	"context"

	"github.com/newsloom/newsloom/internal/geo"
)

// ArticleFilter is the explicit predicate struct accepted by ArticleStore
// queries. Zero-valued fields are not applied. No free-form query language
// crosses this boundary.
type ArticleFilter struct {
	// Category matches articles whose category set contains the value
	// (case-insensitive).
	Category string

	// Source matches articles whose source name contains the value
	// (case-insensitive substring).
	Source string

	// Text matches articles whose title or description contains any of the
	// whitespace-separated terms (case-insensitive).
	Text string

	// MinScore and MaxScore bound the relevance score when non-nil.
	MinScore *float64
	MaxScore *float64

	// Center and RadiusKm restrict results to located articles within the
	// radius. Applied only when Center is non-nil and RadiusKm > 0.
	Center   *geo.Point
	RadiusKm float64

	// RequireLocation excludes articles without a coordinate.
	RequireLocation bool

	// Limit caps the number of candidates returned; 0 means no cap.
	// Ranking happens downstream, so this is a candidate bound, not a page
	// size.
	Limit int
}

// ArticleStore exposes filtered queries over the persisted article set.
// The engine only consumes this contract; it never writes articles except
// through Insert (loading) and SetSummary (lazy enrichment).
type ArticleStore interface {
	// Query returns articles matching every set predicate in the filter.
	// An empty result is not an error.
	Query(ctx context.Context, f ArticleFilter) ([]Article, error)

	// GetByID returns the article with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Article, error)

	// Insert stores a new article. Inserting an existing ID is an error.
	Insert(ctx context.Context, a Article) error

	// MissingSummary returns up to limit articles without a summary.
	MissingSummary(ctx context.Context, limit int) ([]Article, error)

	// SetSummary populates the lazily-computed summary of an article.
	// The only mutation the store permits after insert.
	SetSummary(ctx context.Context, id, summary string) error
}

// InteractionStore exposes append-only interaction event storage.
// The engine reads events; the ingest pipeline appends them.
type InteractionStore interface {
	// EventsFor returns all interaction events for an article.
	EventsFor(ctx context.Context, articleID string) ([]InteractionEvent, error)

	// Append records a new interaction event.
	Append(ctx context.Context, ev InteractionEvent) error

	// Count returns the total number of stored events.
	Count(ctx context.Context) (int, error)
}
