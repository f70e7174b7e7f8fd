// Package strategy maps a resolved query intent onto a retrieval strategy.
// The mapping is total: every intent selects exactly one strategy, and
// structured parameter requests bypass intent resolution entirely.
package strategy

import (
	"github.com/newsloom/newsloom/internal/geo"
	"github.com/newsloom/newsloom/internal/intent"
)

// Strategy identifies one retrieval plan.
type Strategy int

// The closed set of retrieval strategies.
const (
	StrategyCategory Strategy = iota
	StrategySource
	StrategySearch
	StrategyScore
	StrategyNearby
	StrategyTrending
	StrategyFlexible
)

var strategyNames = map[Strategy]string{
	StrategyCategory: "category",
	StrategySource:   "source",
	StrategySearch:   "search",
	StrategyScore:    "score",
	StrategyNearby:   "nearby",
	StrategyTrending: "trending",
	StrategyFlexible: "flexible",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "unknown"
}

// Select chooses the strategy for a resolution. Intents map one-to-one onto
// strategies; an unrecognized intent degrades to search, never an error.
func Select(res intent.Resolution) Strategy {
	switch res.Intent {
	case intent.IntentCategory:
		return StrategyCategory
	case intent.IntentSource:
		return StrategySource
	case intent.IntentScore:
		return StrategyScore
	case intent.IntentNearby:
		return StrategyNearby
	case intent.IntentTrending:
		return StrategyTrending
	case intent.IntentFlexible:
		return StrategyFlexible
	case intent.IntentSearch:
		return StrategySearch
	default:
		return StrategySearch
	}
}

// Params is an explicit structured retrieval request. Any combination of
// fields may be set; all set fields are ANDed together.
type Params struct {
	Text     string
	Category string
	Source   string
	MinScore *float64
	MaxScore *float64
	Center   *geo.Point
	RadiusKm float64
	Limit    int
}

// Empty reports whether no predicate field is set. Limit alone does not
// constitute a predicate.
func (p Params) Empty() bool {
	return p.Text == "" && p.Category == "" && p.Source == "" &&
		p.MinScore == nil && p.MaxScore == nil && p.Center == nil
}

// SelectParams returns the strategy for a structured parameter request.
// Structured params always take the flexible path: the caller has already
// stated exactly which predicates apply.
func SelectParams(p Params) Strategy {
	return StrategyFlexible
}
