// Package moderation screens user-settable room names against a word list.
// Matching runs on a normalized view of the input (lowercased, punctuation
// and spacing ignored) so padding tricks do not slip through, while the
// replacement is applied to the original runes to preserve the name's shape.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Censor struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// mapping links each normalized rune back to its position in the original.
type mapping struct {
	normalized []rune
	origIdx    []int
}

// NewCensor builds the Aho-Corasick automaton from the banned word list.
// An empty list yields a censor that never touches input.
func NewCensor(bannedWords []string, replacement rune) (*Censor, error) {
	if len(bannedWords) == 0 {
		return &Censor{replacement: replacement}, nil
	}

	patterns := make([][]rune, len(bannedWords))
	for i, word := range bannedWords {
		patterns[i] = normalize([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{matcher: m, replacement: replacement}, nil
}

// Clean replaces every banned span in name with the replacement rune.
// Cleaning never fails; a name with nothing to censor comes back unchanged.
func (c *Censor) Clean(name string) string {
	if c.matcher == nil {
		return name
	}

	m := newMapping(name)
	if len(m.normalized) == 0 {
		return name
	}

	spans := c.matcher.MultiPatternSearch(m.normalized, false)
	if len(spans) == 0 {
		return name
	}

	origRunes := []rune(name)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(m.origIdx) {
			continue
		}
		for i := m.origIdx[start]; i <= m.origIdx[end-1]; i++ {
			origRunes[i] = c.replacement
		}
	}
	return string(origRunes)
}

func newMapping(input string) mapping {
	origRunes := []rune(input)
	m := mapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		if isNoise(r) {
			continue
		}
		m.normalized = append(m.normalized, unicode.ToLower(r))
		m.origIdx = append(m.origIdx, i)
	}
	return m
}

func normalize(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if isNoise(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
