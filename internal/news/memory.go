package news

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/newsloom/newsloom/internal/geo"
)

// ErrNotFound is returned when an article does not exist in the store.
var ErrNotFound = errors.New("article not found")

// InMemoryArticleStore is an in-memory implementation of ArticleStore.
// Used for tests and for development without a database.
type InMemoryArticleStore struct {
	mu       sync.RWMutex
	articles map[string]Article
}

// NewInMemoryArticleStore creates an empty in-memory article store.
func NewInMemoryArticleStore() *InMemoryArticleStore {
	return &InMemoryArticleStore{
		articles: make(map[string]Article),
	}
}

// Insert stores a new article. Inserting an existing ID is an error.
func (s *InMemoryArticleStore) Insert(_ context.Context, a Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.articles[a.ID]; exists {
		return fmt.Errorf("article %s already exists", a.ID)
	}
	s.articles[a.ID] = copyArticle(a)
	return nil
}

// GetByID returns the article with the given ID, or ErrNotFound.
func (s *InMemoryArticleStore) GetByID(_ context.Context, id string) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyArticle(a)
	return &out, nil
}

// Query returns articles matching every set predicate in the filter.
func (s *InMemoryArticleStore) Query(_ context.Context, f ArticleFilter) ([]Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Article
	for _, a := range s.articles {
		if MatchesFilter(&a, f) {
			out = append(out, copyArticle(a))
		}
	}

	// Stable iteration order for callers that re-query.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// MissingSummary returns up to limit articles without a summary.
func (s *InMemoryArticleStore) MissingSummary(_ context.Context, limit int) ([]Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Article
	for _, a := range s.articles {
		if a.Summary == "" {
			out = append(out, copyArticle(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetSummary populates the summary of an existing article.
func (s *InMemoryArticleStore) SetSummary(_ context.Context, id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return ErrNotFound
	}
	a.Summary = summary
	s.articles[id] = a
	return nil
}

// MatchesFilter reports whether an article satisfies every set predicate.
// Shared by the in-memory store and the SQL stores' in-process radius pass.
func MatchesFilter(a *Article, f ArticleFilter) bool {
	if f.Category != "" && !containsFold(a.Categories, f.Category) {
		return false
	}
	if f.Source != "" && !strings.Contains(strings.ToLower(a.Source), strings.ToLower(f.Source)) {
		return false
	}
	if f.Text != "" && !matchesAnyTerm(a, f.Text) {
		return false
	}
	if f.MinScore != nil && a.Relevance < *f.MinScore {
		return false
	}
	if f.MaxScore != nil && a.Relevance > *f.MaxScore {
		return false
	}
	if f.RequireLocation && !a.HasLocation() {
		return false
	}
	if f.Center != nil && f.RadiusKm > 0 {
		if !a.HasLocation() {
			return false
		}
		if geo.DistanceKm(*f.Center, *a.Location) > f.RadiusKm {
			return false
		}
	}
	return true
}

// matchesAnyTerm reports whether any whitespace-separated term of text
// appears in the article's title or description.
func matchesAnyTerm(a *Article, text string) bool {
	title := strings.ToLower(a.Title)
	desc := strings.ToLower(a.Description)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		if strings.Contains(title, term) || strings.Contains(desc, term) {
			return true
		}
	}
	return false
}

// containsFold reports whether the slice contains the value case-insensitively.
func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func copyArticle(a Article) Article {
	out := a
	out.Categories = append([]string(nil), a.Categories...)
	if a.Location != nil {
		loc := *a.Location
		out.Location = &loc
	}
	return out
}

// InMemoryInteractionStore is an in-memory implementation of InteractionStore.
type InMemoryInteractionStore struct {
	mu     sync.RWMutex
	events map[string][]InteractionEvent // keyed by article ID
	total  int
}

// NewInMemoryInteractionStore creates an empty in-memory interaction store.
func NewInMemoryInteractionStore() *InMemoryInteractionStore {
	return &InMemoryInteractionStore{
		events: make(map[string][]InteractionEvent),
	}
}

// Append records a new interaction event. The kind must be valid.
func (s *InMemoryInteractionStore) Append(_ context.Context, ev InteractionEvent) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("unknown interaction kind %q", ev.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Location != nil {
		loc := *ev.Location
		ev.Location = &loc
	}
	s.events[ev.ArticleID] = append(s.events[ev.ArticleID], ev)
	s.total++
	return nil
}

// EventsFor returns all interaction events for an article.
func (s *InMemoryInteractionStore) EventsFor(_ context.Context, articleID string) ([]InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[articleID]
	out := make([]InteractionEvent, len(evs))
	copy(out, evs)
	return out, nil
}

// Count returns the total number of stored events.
func (s *InMemoryInteractionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}
