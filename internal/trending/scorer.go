// Package trending computes multi-factor trending scores for articles and
// caches results per location cluster with TTL-bounded freshness.
package trending

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/news"
	"github.com/newsloom/newsloom/internal/ranking"
)

// neutralGeoFactor is the proximity factor assigned to articles without
// coordinates. They neither benefit from nor get punished by distance.
const neutralGeoFactor = 0.5

// FactorBreakdown exposes each factor's weighted contribution to the final
// score, already scaled to score points. The contributions sum to the score.
type FactorBreakdown struct {
	Volume     float64 `json:"volume"`
	Engagement float64 `json:"engagement"`
	Recency    float64 `json:"recency"`
	Geo        float64 `json:"geo"`
	Relevance  float64 `json:"relevance"`
}

// ScoredArticle pairs an article with its trending score.
type ScoredArticle struct {
	Article news.Article    `json:"article"`
	Score   float64         `json:"trending_score"`
	Factors FactorBreakdown `json:"factors"`
}

// Scorer computes trending scores from interaction history. It is safe for
// concurrent use.
type Scorer struct {
	weights      ranking.TrendingWeights
	interactions news.InteractionStore
	now          func() time.Time
}

// NewScorer creates a Scorer. Nil weights select the defaults.
func NewScorer(weights *ranking.Weights, interactions news.InteractionStore) *Scorer {
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	return &Scorer{
		weights:      weights.Trending,
		interactions: interactions,
		now:          time.Now,
	}
}

// Score computes the trending score for one article relative to a reference
// point, on a 0-100 scale.
//
// Recency decay is applied per interaction event: each event contributes
// e^(-age_seconds/86400), so engagement and recency reward sustained recent
// activity rather than a single aggregate timestamp. An article with zero
// interactions scores exactly its geo and relevance contributions.
func (s *Scorer) Score(ctx context.Context, article news.Article, center geo.Point) (float64, FactorBreakdown, error) {
	events, err := s.interactions.EventsFor(ctx, article.ID)
	if err != nil {
		return 0, FactorBreakdown{}, fmt.Errorf("load interactions for %s: %w", article.ID, err)
	}

	now := s.now()

	var decaySum, weightedSum float64
	for _, ev := range events {
		decay := ranking.RecencyDecay(ev.OccurredAt, now)
		decaySum += decay
		weightedSum += ev.Kind.Weight() * decay
	}

	volume := ranking.VolumeFactor(len(events))
	engagement := ranking.EngagementFactor(weightedSum)

	var recency float64
	if len(events) > 0 {
		recency = decaySum / float64(len(events))
	}

	geoFactor := neutralGeoFactor
	if article.HasLocation() {
		geoFactor = ranking.ProximityWeight(geo.DistanceKm(center, *article.Location))
	}

	relevance := ranking.Clamp01(article.Relevance)

	factors := FactorBreakdown{
		Volume:     volume * s.weights.Volume * 100,
		Engagement: engagement * s.weights.Engagement * 100,
		Recency:    recency * s.weights.Recency * 100,
		Geo:        geoFactor * s.weights.Geo * 100,
		Relevance:  relevance * s.weights.Relevance * 100,
	}

	score := factors.Volume + factors.Engagement + factors.Recency + factors.Geo + factors.Relevance
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return score, factors, nil
}

// ScoreAll scores every candidate against the reference point and returns
// them ordered by score descending, truncated to limit (0 means all). Ties
// break by article ID so repeated computations agree.
func (s *Scorer) ScoreAll(ctx context.Context, articles []news.Article, center geo.Point, limit int) ([]ScoredArticle, error) {
	scored := make([]ScoredArticle, 0, len(articles))
	for _, a := range articles {
		score, factors, err := s.Score(ctx, a, center)
		if err != nil {
			return nil, err
		}
		scored = append(scored, ScoredArticle{Article: a, Score: score, Factors: factors})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Article.ID < scored[j].Article.ID
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
