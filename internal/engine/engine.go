// Package engine orchestrates query resolution, strategy selection, article
// retrieval, and trending lookups behind a single facade used by the REST
// layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/intent"
	"github.com/newsloom/newsloom/internal/news"
	"github.com/newsloom/newsloom/internal/ranking"
	"github.com/newsloom/newsloom/internal/strategy"
	"github.com/newsloom/newsloom/internal/trending"
)

// Retrieval defaults.
const (
	// DefaultLimit is the result count when the caller does not ask for one.
	DefaultLimit = 5
	// MaxLimit caps any requested result count.
	MaxLimit = 50
	// DefaultNearbyRadiusKm bounds nearby retrieval when no radius is given.
	DefaultNearbyRadiusKm = 10
	// DefaultMinScore is the relevance threshold for score retrieval when
	// no threshold is given.
	DefaultMinScore = 0.7
	// trendingCandidateLimit caps how many scored articles a cluster keeps.
	trendingCandidateLimit = 50
)

// Config wires an Engine's collaborators.
type Config struct {
	Articles     news.ArticleStore
	Interactions news.InteractionStore
	Resolver     *intent.Resolver
	Weights      *ranking.Weights
	TrendingTTL  time.Duration
	Logger       *slog.Logger
	Metrics      *trending.Metrics
}

// Engine is the retrieval orchestrator. It is safe for concurrent use.
type Engine struct {
	articles news.ArticleStore
	resolver *intent.Resolver
	ranker   *ranking.Ranker
	scorer   *trending.Scorer
	cache    *trending.Cache
	logger   *slog.Logger
}

// New creates an Engine. The trending cache is owned by the engine; its
// compute function scores the full candidate set against the cluster center.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		articles: cfg.Articles,
		resolver: cfg.Resolver,
		ranker:   ranking.NewRanker(),
		scorer:   trending.NewScorer(cfg.Weights, cfg.Interactions),
		logger:   logger,
	}
	e.cache = trending.NewCache(e.computeTrending, cfg.TrendingTTL, logger, cfg.Metrics)
	return e
}

// Cache exposes the trending cache for sweep job wiring.
func (e *Engine) Cache() *trending.Cache {
	return e.cache
}

// ResolveQuery resolves free text into an intent resolution. It never fails;
// NLP unavailability degrades to the local heuristic.
func (e *Engine) ResolveQuery(ctx context.Context, text string, coord *geo.Point) intent.Resolution {
	return e.resolver.Resolve(ctx, text, coord)
}

// Retrieve fetches and ranks articles for a strategy. Params fields the
// strategy does not use are ignored. The returned slice is ordered and
// bounded by the clamped limit.
func (e *Engine) Retrieve(ctx context.Context, s strategy.Strategy, p strategy.Params) ([]news.Article, error) {
	limit := ClampLimit(p.Limit)

	filter, opts := e.plan(s, p, limit)

	candidates, err := e.articles.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	return e.ranker.Rank(s, candidates, opts), nil
}

// plan translates strategy params into a store filter plus ranking options.
// The store filter narrows candidates where it cheaply can; the ranker
// enforces ordering and the strategy-specific predicates.
func (e *Engine) plan(s strategy.Strategy, p strategy.Params, limit int) (news.ArticleFilter, ranking.Options) {
	opts := ranking.Options{Limit: limit}

	switch s {
	case strategy.StrategyCategory:
		return news.ArticleFilter{Category: p.Category}, opts
	case strategy.StrategySource:
		return news.ArticleFilter{Source: p.Source}, opts
	case strategy.StrategyScore:
		min := DefaultMinScore
		if p.MinScore != nil {
			min = *p.MinScore
		}
		opts.MinScore = min
		return news.ArticleFilter{MinScore: &min}, opts
	case strategy.StrategyNearby:
		radius := p.RadiusKm
		if radius <= 0 {
			radius = DefaultNearbyRadiusKm
		}
		opts.Center = p.Center
		opts.RadiusKm = radius
		return news.ArticleFilter{
			Center:          p.Center,
			RadiusKm:        radius,
			RequireLocation: true,
		}, opts
	case strategy.StrategyFlexible:
		f := news.ArticleFilter{
			Text:     p.Text,
			Category: p.Category,
			Source:   p.Source,
			MinScore: p.MinScore,
			MaxScore: p.MaxScore,
			Center:   p.Center,
			RadiusKm: p.RadiusKm,
		}
		opts.Flexible = f
		return f, opts
	default:
		// search and trending candidates both start from text retrieval.
		return news.ArticleFilter{Text: p.Text}, opts
	}
}

// Trending returns the cached trending results for the cluster containing
// coord, truncated to the clamped limit.
func (e *Engine) Trending(ctx context.Context, coord geo.Point, limit int, forceRefresh bool) (trending.Result, error) {
	res, err := e.cache.Get(ctx, coord.Lat, coord.Lon, forceRefresh)
	if err != nil {
		return trending.Result{}, err
	}

	limit = ClampLimit(limit)
	if len(res.Articles) > limit {
		res.Articles = res.Articles[:limit]
	}
	return res, nil
}

// QueryResult is the outcome of a free-text query: what was understood and
// what was retrieved.
type QueryResult struct {
	Resolution intent.Resolution `json:"resolution"`
	Strategy   strategy.Strategy `json:"-"`
	Articles   []news.Article    `json:"articles,omitempty"`
	Trending   *trending.Result  `json:"trending,omitempty"`
}

// Query resolves free text, selects a strategy, and retrieves accordingly.
// A trending intent with a coordinate takes the cached trending path;
// without a coordinate it degrades to text search rather than failing.
func (e *Engine) Query(ctx context.Context, text string, coord *geo.Point, limit int) (QueryResult, error) {
	res := e.ResolveQuery(ctx, text, coord)
	s := strategy.Select(res)
	p := e.paramsFromResolution(text, res, coord, limit)

	// Strategies that need a coordinate degrade to search without one.
	if coord == nil && (s == strategy.StrategyNearby || s == strategy.StrategyTrending) {
		s = strategy.StrategySearch
	}

	e.logger.Debug("resolved query",
		"intent", string(res.Intent),
		"strategy", s.String(),
		"source", string(res.Source),
		"confidence", res.Confidence)

	out := QueryResult{Resolution: res, Strategy: s}

	if s == strategy.StrategyTrending {
		tr, err := e.Trending(ctx, *coord, limit, false)
		if err != nil {
			return QueryResult{}, err
		}
		out.Trending = &tr
		return out, nil
	}

	articles, err := e.Retrieve(ctx, s, p)
	if err != nil {
		return QueryResult{}, err
	}
	out.Articles = articles
	return out, nil
}

// paramsFromResolution maps extracted entities onto strategy params. When an
// intent's primary entity is missing, the raw query text carries the load as
// a search term.
func (e *Engine) paramsFromResolution(text string, res intent.Resolution, coord *geo.Point, limit int) strategy.Params {
	p := strategy.Params{Text: text, Limit: limit, Center: coord}

	if topic := res.FirstEntity(intent.RoleTopic); topic != "" {
		p.Category = topic
	}
	if org := res.FirstEntity(intent.RoleOrganization); org != "" {
		p.Source = org
	}
	return p
}

// computeTrending is the cache's compute function: it loads the candidate
// set and scores everything against the cluster center.
func (e *Engine) computeTrending(ctx context.Context, center geo.Point) ([]trending.ScoredArticle, error) {
	candidates, err := e.articles.Query(ctx, news.ArticleFilter{})
	if err != nil {
		return nil, fmt.Errorf("load trending candidates: %w", err)
	}
	return e.scorer.ScoreAll(ctx, candidates, center, trendingCandidateLimit)
}

// ClampLimit normalizes a requested result count into [1, MaxLimit], with
// DefaultLimit for unset values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
