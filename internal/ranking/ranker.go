package ranking

import (
	"sort"

	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/news"
	"github.com/newsloom/newsloom/internal/strategy"
)

// Options carries the per-request knobs a strategy needs beyond the
// candidate set itself.
type Options struct {
	// Center is the reference point for the nearby strategy.
	Center *geo.Point

	// RadiusKm bounds the nearby strategy; 0 means unbounded. The bound is
	// inclusive: an article exactly at the radius is kept.
	RadiusKm float64

	// MinScore is the relevance threshold for the score strategy.
	MinScore float64

	// Flexible carries the ANDed predicates for the flexible strategy.
	Flexible news.ArticleFilter

	// Limit truncates the ranked result; 0 means no truncation.
	Limit int
}

// Ranker orders and filters candidate articles per strategy. The zero value
// is ready to use.
type Ranker struct{}

// NewRanker creates a Ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank applies the given strategy's filtering and ordering to candidates and
// returns a new slice. Candidates are never mutated. Ties are broken
// deterministically so repeated calls over the same input agree.
func (r *Ranker) Rank(s strategy.Strategy, candidates []news.Article, opts Options) []news.Article {
	var out []news.Article

	switch s {
	case strategy.StrategyNearby:
		out = r.rankNearby(candidates, opts)
	case strategy.StrategyScore:
		out = r.rankScore(candidates, opts)
	case strategy.StrategyFlexible:
		out = r.rankFlexible(candidates, opts)
	default:
		// search, category, source, and trending candidates all take
		// relevance ordering; trending re-scores downstream.
		out = r.rankRelevance(candidates)
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// rankRelevance orders by relevance descending, ties broken by publication
// time descending, then ID for full determinism.
func (r *Ranker) rankRelevance(candidates []news.Article) []news.Article {
	out := make([]news.Article, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// rankNearby orders by haversine distance from the center, ascending.
// Articles without coordinates are excluded: an unlocated article has no
// defined distance and must never outrank a located one.
func (r *Ranker) rankNearby(candidates []news.Article, opts Options) []news.Article {
	if opts.Center == nil {
		return r.rankRelevance(candidates)
	}

	type located struct {
		article  news.Article
		distance float64
	}

	var kept []located
	for _, a := range candidates {
		if !a.HasLocation() {
			continue
		}
		d := geo.DistanceKm(*opts.Center, *a.Location)
		if opts.RadiusKm > 0 && d > opts.RadiusKm {
			continue
		}
		kept = append(kept, located{article: a, distance: d})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].distance != kept[j].distance {
			return kept[i].distance < kept[j].distance
		}
		return kept[i].article.ID < kept[j].article.ID
	})

	out := make([]news.Article, len(kept))
	for i, l := range kept {
		out[i] = l.article
	}
	return out
}

// rankScore keeps articles at or above the relevance threshold, then applies
// relevance ordering.
func (r *Ranker) rankScore(candidates []news.Article, opts Options) []news.Article {
	var kept []news.Article
	for _, a := range candidates {
		if a.Relevance >= opts.MinScore {
			kept = append(kept, a)
		}
	}
	return r.rankRelevance(kept)
}

// rankFlexible ANDs all supplied predicates, then applies relevance
// ordering. The filter's own Limit is ignored here; truncation happens once
// in Rank.
func (r *Ranker) rankFlexible(candidates []news.Article, opts Options) []news.Article {
	f := opts.Flexible
	f.Limit = 0

	var kept []news.Article
	for i := range candidates {
		if news.MatchesFilter(&candidates[i], f) {
			kept = append(kept, candidates[i])
		}
	}
	return r.rankRelevance(kept)
}
