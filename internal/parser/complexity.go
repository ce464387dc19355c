package parser

import (
	"regexp"
	"strings"
)

// Branch and loop tokens counted per language family. Weights follow the
// usual cyclomatic intuition: every decision point adds to the score.
var (
	branchTokens = regexp.MustCompile(`\b(if|elif|else if|case|when|catch|except)\b`)
	loopTokens   = regexp.MustCompile(`\b(for|while|range)\b`)
	switchTokens = regexp.MustCompile(`\b(switch|match)\b`)
	boolTokens   = regexp.MustCompile(`(&&|\|\||\band\b|\bor\b)`)
)

// scoreComplexity estimates an element's complexity from its snippet.
// Base 1.0 plus weighted decision points. Deliberately coarse, it only
// feeds the ranking penalty, never correctness.
func scoreComplexity(snippet, language string) float64 {
	if snippet == "" {
		return 1.0
	}

	score := 1.0
	score += 0.5 * float64(len(branchTokens.FindAllString(snippet, -1)))
	score += 0.7 * float64(len(loopTokens.FindAllString(snippet, -1)))
	score += 0.6 * float64(len(switchTokens.FindAllString(snippet, -1)))
	score += 0.2 * float64(len(boolTokens.FindAllString(snippet, -1)))

	// Deep nesting is a decision-point multiplier in spirit; approximate
	// it by the maximum indentation depth seen
	maxIndent := 0
	for _, line := range strings.Split(snippet, "\n") {
		indent := 0
		for _, r := range line {
			if r == ' ' {
				indent++
			} else if r == '\t' {
				indent += 4
			} else {
				break
			}
		}
		if indent > maxIndent {
			maxIndent = indent
		}
	}
	score += float64(maxIndent/8) * 0.3

	return score
}
