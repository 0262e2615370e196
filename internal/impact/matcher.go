package impact

import "github.com/leapstack-labs/leapdiff/internal/schema"

// ColumnReferenceMatcher decides whether a downstream column references a
// changed upstream column. The default substring heuristic trades precision
// for recall; an expression-level lineage matcher can replace it without
// touching the propagation algorithm.
type ColumnReferenceMatcher interface {
	// Matches reports whether downstream column name refers to the changed
	// upstream column name.
	Matches(changed, downstream string) bool
}

// SubstringMatcher matches when the downstream name equals the changed name
// or contains it as a substring, under the shared normalization policy.
type SubstringMatcher struct {
	Policy schema.NamePolicy
}

func (m SubstringMatcher) Matches(changed, downstream string) bool {
	return m.Policy.Equal(changed, downstream) || m.Policy.Contains(downstream, changed)
}

// ExactMatcher matches only on normalized name equality. Stricter than the
// substring heuristic: fewer false positives, misses derived columns.
type ExactMatcher struct {
	Policy schema.NamePolicy
}

func (m ExactMatcher) Matches(changed, downstream string) bool {
	return m.Policy.Equal(changed, downstream)
}

// MatcherFor returns the matcher configured by name. Unknown names fall back
// to the substring heuristic.
func MatcherFor(name string, policy schema.NamePolicy) ColumnReferenceMatcher {
	if name == "exact" {
		return ExactMatcher{Policy: policy}
	}
	return SubstringMatcher{Policy: policy}
}
