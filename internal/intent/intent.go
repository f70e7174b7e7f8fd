// Package intent resolves free-text queries into a retrieval intent with
// extracted entities and a confidence, using an external NLP capability with
// a deterministic local fallback.
package intent

import "context"

// Intent is the caller's inferred retrieval goal.
type Intent string

// The closed set of retrieval intents.
const (
	IntentCategory Intent = "category"
	IntentSource   Intent = "source"
	IntentSearch   Intent = "search"
	IntentScore    Intent = "score"
	IntentNearby   Intent = "nearby"
	IntentTrending Intent = "trending"
	IntentFlexible Intent = "flexible"
)

// EntityRole classifies an extracted entity's semantic role in the query.
type EntityRole string

// Entity roles recognized by the resolver.
const (
	RoleLocation     EntityRole = "location"
	RoleTopic        EntityRole = "topic"
	RoleOrganization EntityRole = "organization"
	RolePerson       EntityRole = "person"
)

// Source tags how a Resolution was produced, so downstream consumers can
// distinguish analyzer output from the local heuristic. This is a tag, not
// an error type: the fallback path is a normal outcome.
type Source string

const (
	// SourceAnalyzer marks a resolution built from the NLP capability.
	SourceAnalyzer Source = "analyzer"
	// SourceFallback marks a resolution built by the local heuristic after
	// the NLP capability failed or was not configured.
	SourceFallback Source = "fallback"
)

// Entity is a single extracted entity with its raw type as reported by the
// NLP capability.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Analysis is the NLP capability's output contract: an ordered entity list
// and an overall confidence.
type Analysis struct {
	Entities   []Entity `json:"entities"`
	Confidence float64  `json:"confidence"`
}

// Analyzer is the external entity/intent extraction capability.
// Implementations must respect the context deadline.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

// Resolution is the outcome of resolving a query. It always carries a valid
// intent; absence of signal degrades confidence rather than failing.
type Resolution struct {
	// Intent is the inferred retrieval goal.
	Intent Intent `json:"intent"`

	// Confidence is in [0,1]. Fallback resolutions use FallbackConfidence,
	// which is distinct from typical analyzer confidences so the two paths
	// stay distinguishable downstream.
	Confidence float64 `json:"confidence"`

	// Source tags which path produced this resolution.
	Source Source `json:"source"`

	// Entities maps each extracted entity string to its semantic role.
	Entities map[string]EntityRole `json:"entities"`

	// Ordered lists entity strings in the order they appeared.
	Ordered []string `json:"ordered_entities"`

	// roleConfidence holds the per-role confidence used for intent
	// tie-breaking.
	roleConfidence map[EntityRole]float64
}

// RoleConfidence returns the confidence attributed to a role, or 0 when the
// role was not detected.
func (r Resolution) RoleConfidence(role EntityRole) float64 {
	return r.roleConfidence[role]
}

// FirstEntity returns the first extracted entity with the given role, or ""
// if none was detected.
func (r Resolution) FirstEntity(role EntityRole) string {
	for _, text := range r.Ordered {
		if r.Entities[text] == role {
			return text
		}
	}
	return ""
}
