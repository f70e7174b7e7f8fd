package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/newsloom/newsloom/internal/geo"
)

// DefaultAnalyzeTimeout bounds a single NLP capability call. The resolver
// never blocks a request longer than this before degrading to the fallback.
const DefaultAnalyzeTimeout = 2 * time.Second

// Resolver turns free text into a Resolution. It is safe for concurrent use.
type Resolver struct {
	analyzer Analyzer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil analyzer is allowed and forces the
// fallback path (useful when no NLP endpoint is configured).
func NewResolver(analyzer Analyzer, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultAnalyzeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{analyzer: analyzer, timeout: timeout, logger: logger}
}

// Resolve analyzes the query text and returns a Resolution. It never returns
// an error: any failure of the NLP capability degrades to the local keyword
// heuristic with FallbackConfidence. The user coordinate, when present, only
// informs intent inference (a bare location query with a coordinate leans
// nearby); it is never sent to the analyzer.
func (r *Resolver) Resolve(ctx context.Context, text string, coord *geo.Point) Resolution {
	if r.analyzer == nil {
		return resolveFallback(text, coord)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	analysis, err := r.analyzer.Analyze(ctx, text)
	if err != nil {
		r.logger.Warn("query analysis unavailable, using fallback heuristic",
			"error", err)
		return resolveFallback(text, coord)
	}

	return resolveFromAnalysis(text, analysis, coord)
}

// resolveFromAnalysis builds a Resolution from NLP output. Entity roles come
// from the analyzer's entity types; intent inference reuses the shared
// keyword rules so both paths agree on intent semantics.
func resolveFromAnalysis(text string, analysis Analysis, coord *geo.Point) Resolution {
	res := Resolution{
		Source:         SourceAnalyzer,
		Confidence:     clamp01(analysis.Confidence),
		Entities:       make(map[string]EntityRole),
		roleConfidence: make(map[EntityRole]float64),
	}

	for _, e := range analysis.Entities {
		if e.Text == "" {
			continue
		}
		role := roleForEntityType(e.Type, e.Text)
		if _, seen := res.Entities[e.Text]; !seen {
			res.Entities[e.Text] = role
			res.Ordered = append(res.Ordered, e.Text)
		}
		if res.Confidence > res.roleConfidence[role] {
			res.roleConfidence[role] = res.Confidence
		}
	}

	res.Intent = inferIntent(text, res, coord)
	return res
}

// roleForEntityType maps an analyzer entity type onto a semantic role.
// Location typing is trusted from the analyzer only; everything the
// analyzer does not type explicitly is classified by vocabulary.
func roleForEntityType(entityType, text string) EntityRole {
	switch strings.ToLower(entityType) {
	case "location", "gpe", "place":
		return RoleLocation
	case "organization", "org":
		return RoleOrganization
	case "person":
		return RolePerson
	default:
		if isKnownCategory(text) {
			return RoleTopic
		}
		if isKnownSource(text) {
			return RoleOrganization
		}
		return RoleTopic
	}
}

// inferIntent applies the shared keyword and role rules to pick an intent.
//
// Precedence: explicit trending markers, then explicit nearby markers, then
// category vocabulary, then source vocabulary, then score markers, then the
// default search. When both a topic and a location are present without an
// explicit marker, the role with the higher confidence wins; on a tie the
// topic wins because a named category is the more specific signal.
func inferIntent(text string, res Resolution, coord *geo.Point) Intent {
	words := fieldsLower(text)

	hasTopic := res.roleConfidence[RoleTopic] > 0
	hasLocation := res.roleConfidence[RoleLocation] > 0

	switch {
	case hasAny(words, trendingMarkers):
		return IntentTrending
	case hasAny(words, nearbyMarkers):
		return IntentNearby
	case hasAny(words, categoryVocabulary) || hasTopic && hasCategoryEntity(res):
		if hasLocation && res.roleConfidence[RoleLocation] > res.roleConfidence[RoleTopic] {
			return IntentNearby
		}
		return IntentCategory
	case hasAny(words, sourceVocabulary) || res.roleConfidence[RoleOrganization] > 0 && hasSourceEntity(res):
		return IntentSource
	case hasAny(words, scoreMarkers):
		return IntentScore
	case hasLocation && coord != nil:
		return IntentNearby
	default:
		return IntentSearch
	}
}

// hasCategoryEntity reports whether any topic-role entity is a known
// category name.
func hasCategoryEntity(res Resolution) bool {
	for text, role := range res.Entities {
		if role == RoleTopic && isKnownCategory(text) {
			return true
		}
	}
	return false
}

// hasSourceEntity reports whether any organization-role entity is a known
// source name.
func hasSourceEntity(res Resolution) bool {
	for text, role := range res.Entities {
		if role == RoleOrganization && isKnownSource(text) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
