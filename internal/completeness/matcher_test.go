package completeness

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstringMatcher(t *testing.T) {
	t.Parallel()

	m := SubstringMatcher{}
	tests := []struct {
		name  string
		texts []string
		terms []string
		want  bool
	}{
		{"case insensitive", []string{"Terms: CIF Hamburg"}, IncotermKeywords, true},
		{"inside a word", []string{"fobia"}, []string{"fob"}, true},
		{"second text", []string{"hello", "ex works (EXW)"}, IncotermKeywords, true},
		{"no match", []string{"hello there"}, []string{"fob"}, false},
		{"empty texts", nil, IncotermKeywords, false},
		{"blank term ignored", []string{"anything"}, []string{""}, false},
		{"hyphenated", []string{"Goods are NON-STACKABLE"}, StackabilityKeywords, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, m.ContainsAny(tt.texts, tt.terms))
		})
	}
}

func TestWordMatcher(t *testing.T) {
	t.Parallel()

	m := NewWordMatcher()
	tests := []struct {
		name  string
		texts []string
		terms []string
		want  bool
	}{
		{"whole word", []string{"Terms: FOB."}, []string{"fob"}, true},
		{"start of text", []string{"fob shanghai"}, []string{"fob"}, true},
		{"inside a word", []string{"fobia"}, []string{"fob"}, false},
		{"hyphen boundary", []string{"non-stackable cargo"}, []string{"stackable"}, true},
		{"hyphenated term", []string{"non-stackable"}, []string{"non-stackable"}, true},
		{"no match", []string{"incoterms"}, []string{"incoterm"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, m.ContainsAny(tt.texts, tt.terms))
		})
	}
}

func TestWordMatcher_ConcurrentUse(t *testing.T) {
	t.Parallel()

	var m WordMatcher
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, m.ContainsAny([]string{"Terms DAP"}, IncotermKeywords))
		}()
	}
	wg.Wait()
}

func TestNewMatcher(t *testing.T) {
	t.Parallel()

	assert.IsType(t, SubstringMatcher{}, NewMatcher("substring"))
	assert.IsType(t, SubstringMatcher{}, NewMatcher(""))
	assert.IsType(t, SubstringMatcher{}, NewMatcher("bogus"))
	assert.IsType(t, &WordMatcher{}, NewMatcher(" Word "))
}
