package completeness

import (
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// TextMatcher decides whether any of terms occurs in any of texts. It backs
// the free-text fallbacks for stackability and incoterms.
type TextMatcher interface {
	ContainsAny(texts, terms []string) bool
}

// Matcher names accepted by NewMatcher.
const (
	MatcherSubstring = "substring"
	MatcherWord      = "word"
)

// NewMatcher returns the matcher registered under name, defaulting to
// substring matching for unknown names.
func NewMatcher(name string) TextMatcher {
	if strings.EqualFold(strings.TrimSpace(name), MatcherWord) {
		return NewWordMatcher()
	}
	return SubstringMatcher{}
}

// SubstringMatcher is a case-insensitive substring match. It is not
// word-aware: "fobia" matches "fob".
type SubstringMatcher struct{}

// ContainsAny implements TextMatcher.
func (SubstringMatcher) ContainsAny(texts, terms []string) bool {
	caser := cases.Fold()
	folded := make([]string, len(terms))
	for i, term := range terms {
		folded[i] = caser.String(term)
	}
	for _, text := range texts {
		if text == "" {
			continue
		}
		t := caser.String(text)
		for _, term := range folded {
			if term != "" && strings.Contains(t, term) {
				return true
			}
		}
	}
	return false
}

// WordMatcher matches terms only on word boundaries, case-insensitively.
// Compiled patterns are cached per term.
type WordMatcher struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewWordMatcher creates a WordMatcher.
func NewWordMatcher() *WordMatcher {
	return &WordMatcher{patterns: make(map[string]*regexp.Regexp)}
}

// ContainsAny implements TextMatcher.
func (m *WordMatcher) ContainsAny(texts, terms []string) bool {
	for _, term := range terms {
		if term == "" {
			continue
		}
		re := m.pattern(term)
		for _, text := range texts {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

func (m *WordMatcher) pattern(term string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patterns == nil {
		m.patterns = make(map[string]*regexp.Regexp)
	}
	if re, ok := m.patterns[term]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(term) + `($|[^\p{L}\p{N}])`)
	m.patterns[term] = re
	return re
}
