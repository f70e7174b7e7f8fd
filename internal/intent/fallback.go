package intent

import (
	"strings"

	"github.com/newsloom/newsloom/internal/geo"
)

// FallbackConfidence is assigned to every fallback resolution. It is fixed
// and deliberately distinct from typical analyzer confidences so the two
// paths remain distinguishable downstream.
const FallbackConfidence = 0.5

// categoryVocabulary is the fixed set of category names the fallback matches
// against. Kept in sync with the categories shipped in the sample data.
var categoryVocabulary = map[string]bool{
	"technology":    true,
	"business":      true,
	"sports":        true,
	"politics":      true,
	"entertainment": true,
	"science":       true,
	"health":        true,
	"world":         true,
}

// sourceVocabulary is the fixed set of source-name tokens the fallback
// matches against.
var sourceVocabulary = map[string]bool{
	"reuters":   true,
	"bbc":       true,
	"cnn":       true,
	"bloomberg": true,
	"guardian":  true,
	"times":     true,
	"hindu":     true,
}

// locationGazetteer is a small fixed list of location names for the
// fallback path, which has no typed entities to lean on.
var locationGazetteer = map[string]bool{
	"mumbai":    true,
	"delhi":     true,
	"bangalore": true,
	"chennai":   true,
	"kolkata":   true,
	"hyderabad": true,
	"pune":      true,
	"london":    true,
	"new york":  true,
	"tokyo":     true,
	"sydney":    true,
	"paris":     true,
	"berlin":    true,
}

// Marker words steering intent inference on both resolution paths.
var (
	nearbyMarkers   = map[string]bool{"near": true, "nearby": true, "around": true, "local": true, "close": true}
	scoreMarkers    = map[string]bool{"top": true, "best": true, "highest": true, "relevant": true}
	trendingMarkers = map[string]bool{"trending": true, "popular": true, "viral": true, "buzzing": true}
)

// resolveFallback is the deterministic local heuristic used when the NLP
// capability is unavailable. It tokenizes the query, matches tokens against
// the fixed vocabularies, and picks an intent with the same precedence rules
// as the analyzer path. Confidence is always FallbackConfidence.
func resolveFallback(text string, coord *geo.Point) Resolution {
	res := Resolution{
		Source:         SourceFallback,
		Confidence:     FallbackConfidence,
		Entities:       make(map[string]EntityRole),
		roleConfidence: make(map[EntityRole]float64),
	}

	add := func(original string, role EntityRole) {
		if _, seen := res.Entities[original]; seen {
			return
		}
		res.Entities[original] = role
		res.Ordered = append(res.Ordered, original)
		if FallbackConfidence > res.roleConfidence[role] {
			res.roleConfidence[role] = FallbackConfidence
		}
	}

	tokens := strings.Fields(text)
	for i, tok := range tokens {
		lower := normalizeToken(tok)
		switch {
		case categoryVocabulary[lower]:
			add(strings.Trim(tok, ".,!?;:"), RoleTopic)
		case sourceVocabulary[lower]:
			add(strings.Trim(tok, ".,!?;:"), RoleOrganization)
		case locationGazetteer[lower]:
			add(strings.Trim(tok, ".,!?;:"), RoleLocation)
		default:
			// Two-word location names ("new york").
			if i+1 < len(tokens) {
				pair := lower + " " + normalizeToken(tokens[i+1])
				if locationGazetteer[pair] {
					add(strings.Trim(tok, ".,!?;:")+" "+strings.Trim(tokens[i+1], ".,!?;:"), RoleLocation)
				}
			}
		}
	}

	res.Intent = inferIntent(text, res, coord)
	return res
}

// fieldsLower returns the lowercase punctuation-trimmed tokens of text.
func fieldsLower(text string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(text) {
		out[normalizeToken(tok)] = true
	}
	return out
}

func normalizeToken(tok string) string {
	return strings.ToLower(strings.Trim(tok, ".,!?;:'\""))
}

func hasAny(words map[string]bool, vocab map[string]bool) bool {
	for w := range vocab {
		if words[w] {
			return true
		}
	}
	return false
}

func isKnownCategory(text string) bool {
	return categoryVocabulary[strings.ToLower(text)]
}

func isKnownSource(text string) bool {
	return sourceVocabulary[strings.ToLower(text)]
}
