package searcher

import (
	"strings"
	"unicode"

	"github.com/popoloni/codescope/pkg/types"
)

// Kind weights bias results toward the element kinds a human usually
// wants first: whole types and entry-point functions over variables.
var kindWeights = map[types.ElementKind]float64{
	types.KindClass:    1.2,
	types.KindFunction: 1.1,
	types.KindMethod:   1.0,
	types.KindVariable: 0.8,
}

const nameMatchBoost = 0.3

// Rank turns a raw similarity into the final ordering score:
//
//	similarity * kind weight * name-match boost * complexity penalty
//
// The name boost adds 0.3 per query term appearing in the element
// name. The complexity penalty scales a score down for very complex
// elements, bottoming out at 0.5; elements without a complexity score
// are not penalized.
func Rank(similarity float64, e *types.CodeElement, terms []string) float64 {
	weight, ok := kindWeights[e.Kind]
	if !ok {
		weight = 1.0
	}

	score := similarity * weight

	if len(terms) > 0 {
		name := strings.ToLower(e.Name)
		matches := 0
		for _, term := range terms {
			if strings.Contains(name, term) {
				matches++
			}
		}
		score *= 1 + nameMatchBoost*float64(matches)
	}

	if e.Complexity != nil {
		penalty := 1 - *e.Complexity/10
		if penalty < 0.5 {
			penalty = 0.5
		}
		score *= penalty
	}
	return score
}

// queryTerms lowercases and tokenizes a query on non-alphanumeric
// runes, dropping single-character fragments.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}
