// Package schemes matches extracted scheme-name candidates against the
// active scheme catalog.
package schemes

import (
	"strings"

	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// Matcher resolves a free-text candidate to a catalog scheme. Implementations
// are swappable so substring matching can later be replaced with token-set or
// embedding similarity without touching the pipeline.
type Matcher interface {
	// Match returns the matched scheme and true, or false when the candidate
	// resolves to nothing. Unmatched candidates are dropped by callers, not
	// surfaced as errors.
	Match(candidate string, catalog []store.Scheme) (store.Scheme, bool)
}

// SubstringMatcher matches by bidirectional case-insensitive substring
// containment: "PMEGP" matches "PMEGP (Prime Minister's Employment
// Generation Programme)" and vice versa.
type SubstringMatcher struct{}

func NewSubstringMatcher() SubstringMatcher { return SubstringMatcher{} }

func (SubstringMatcher) Match(candidate string, catalog []store.Scheme) (store.Scheme, bool) {
	needle := strings.ToLower(strings.TrimSpace(candidate))
	if needle == "" {
		return store.Scheme{}, false
	}
	for _, s := range catalog {
		name := strings.ToLower(s.Name)
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return s, true
		}
	}
	return store.Scheme{}, false
}
