// Package news defines the article and interaction domain model and the
// store contracts the retrieval engine consumes.
package news

import (
	"fmt"
	"time"

	"github.com/newsloom/newsloom/internal/geo"
)

// Article is a news article as persisted by an ArticleStore.
// Articles are immutable after creation except for Summary, which may be
// populated lazily by the enrichment job.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	PublishedAt time.Time  `json:"publication_date"`
	Source      string     `json:"source_name"`
	Categories  []string   `json:"category"`
	Relevance   float64    `json:"relevance_score"`
	Location    *geo.Point `json:"location,omitempty"`
	Summary     string     `json:"summary,omitempty"`
}

// HasLocation reports whether the article carries a coordinate.
func (a *Article) HasLocation() bool {
	return a.Location != nil
}

// InteractionKind identifies the type of a user interaction with an article.
type InteractionKind string

// The closed set of interaction kinds. Events with any other kind are
// rejected at ingestion.
const (
	KindView     InteractionKind = "view"
	KindClick    InteractionKind = "click"
	KindShare    InteractionKind = "share"
	KindBookmark InteractionKind = "bookmark"
	KindComment  InteractionKind = "comment"
)

// kindWeights maps each interaction kind to its engagement weight.
// Shares signal the strongest engagement; passive views the weakest.
var kindWeights = map[InteractionKind]float64{
	KindView:     1,
	KindClick:    2,
	KindShare:    3,
	KindBookmark: 2,
	KindComment:  2,
}

// Valid reports whether k is one of the known interaction kinds.
func (k InteractionKind) Valid() bool {
	_, ok := kindWeights[k]
	return ok
}

// Weight returns the engagement weight of the interaction kind.
// Unknown kinds weigh zero.
func (k InteractionKind) Weight() float64 {
	return kindWeights[k]
}

// ParseKind converts a raw string into an InteractionKind.
func ParseKind(s string) (InteractionKind, error) {
	k := InteractionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown interaction kind %q", s)
	}
	return k, nil
}

// Kinds returns all valid interaction kinds in canonical order.
func Kinds() []InteractionKind {
	return []InteractionKind{KindView, KindClick, KindShare, KindBookmark, KindComment}
}

// InteractionEvent records a single user interaction with an article.
// Events are append-only; the engine never mutates or deletes them.
type InteractionEvent struct {
	ID         string          `json:"id"`
	ArticleID  string          `json:"article_id"`
	UserID     string          `json:"user_id"`
	Kind       InteractionKind `json:"interaction_type"`
	OccurredAt time.Time       `json:"timestamp"`
	Location   *geo.Point      `json:"location,omitempty"`
}
