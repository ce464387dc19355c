// Package graph infers directed dependency edges between parsed code
// elements and derives analytics from the resulting graph.
//
// Edge resolution is approximate by design: method calls are matched by
// bare name against a repository-wide lookup table, so two unrelated
// elements sharing a method name across files can produce false-positive
// edges. This mirrors the behavior of pattern-level analysis and is a
// documented limitation, not something the analyzer tries to
// disambiguate.
//
// Duplicate edges between the same pair and kind are counted, not
// deduplicated: multiplicity feeds the coupling metrics.
//
// Cycles, coupling and paths are pure functions of the edge multiset,
// recomputed on every call. Nothing derived is ever cached or stored.
package graph
