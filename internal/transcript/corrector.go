package transcript

import (
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/livescribe/internal/transcript/phonetic"
)

// minSingleTokenLen keeps short function words ("a", "of", "is") from being
// pulled onto vocabulary terms.
const minSingleTokenLen = 3

// VocabularyCorrector replaces misheard phrases in final segments with
// configured vocabulary terms. The vocabulary and the matcher can be swapped
// at runtime; it is safe for concurrent use.
type VocabularyCorrector struct {
	matcher atomic.Pointer[phonetic.Matcher]
	vocab   atomic.Pointer[phonetic.Vocabulary]
}

var _ Corrector = (*VocabularyCorrector)(nil)

// NewVocabularyCorrector returns a corrector for terms. A nil matcher selects
// [phonetic.New] with default thresholds.
func NewVocabularyCorrector(m *phonetic.Matcher, terms []string) *VocabularyCorrector {
	if m == nil {
		m = phonetic.New()
	}
	c := &VocabularyCorrector{}
	c.matcher.Store(m)
	c.SetVocabulary(terms)
	return c
}

// SetMatcher replaces the matcher, e.g. after the thresholds changed. A nil
// matcher is ignored.
func (c *VocabularyCorrector) SetMatcher(m *phonetic.Matcher) {
	if m != nil {
		c.matcher.Store(m)
	}
}

// SetVocabulary replaces the vocabulary. Segments being corrected
// concurrently finish with the previous list.
func (c *VocabularyCorrector) SetVocabulary(terms []string) {
	c.vocab.Store(phonetic.NewVocabulary(terms))
}

// Vocabulary returns the active terms.
func (c *VocabularyCorrector) Vocabulary() []string {
	return c.vocab.Load().Terms()
}

// Correct implements [Corrector].
//
// At each token position, windows from one word longer than the longest term
// down to a single word are tried and the longest accepted window wins. A
// window is accepted when the matcher selects a term for it, the window's
// words align with the term's words (see [phonetic.Matcher.Align]), and
// neither edge word is superfluous. Punctuation trailing the window is kept.
// When nothing is replaced, text is returned unchanged.
func (c *VocabularyCorrector) Correct(text string) (string, []Correction) {
	vocab := c.vocab.Load()
	m := c.matcher.Load()
	maxWords := vocab.MaxWords()
	if maxWords == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var (
		out         = make([]string, 0, len(tokens))
		corrections []Correction
	)
	for i := 0; i < len(tokens); {
		consumed := 0
		for n := min(maxWords+1, len(tokens)-i); n >= 1; n-- {
			window := tokens[i : i+n]
			core, suffix := splitTrailingPunct(strings.Join(window, " "))
			if n == 1 && utf8.RuneCountInString(core) < minSingleTokenLen {
				continue
			}
			term, _, ok := m.Match(core, vocab)
			if !ok {
				continue
			}
			score, ok := m.Align(core, term)
			if !ok || edgeRedundant(m, window, term, score) {
				continue
			}
			out = append(out, term+suffix)
			if term != core {
				corrections = append(corrections, Correction{Original: core, Corrected: term, Confidence: score})
			}
			consumed = n
			break
		}
		if consumed == 0 {
			out = append(out, tokens[i])
			consumed = 1
		}
		i += consumed
	}

	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(out, " "), corrections
}

// edgeRedundant reports whether dropping the first or last word of window
// aligns with term at least as well, i.e. the edge word is not part of it
// ("the tower" for "Tower").
func edgeRedundant(m *phonetic.Matcher, window []string, term string, score float64) bool {
	if len(window) < 2 {
		return false
	}
	for _, sub := range [][]string{window[1:], window[:len(window)-1]} {
		core, _ := splitTrailingPunct(strings.Join(sub, " "))
		if s, ok := m.Align(core, term); ok && s >= score {
			return true
		}
	}
	return false
}

// splitTrailingPunct separates trailing punctuation ("world." → "world", ".").
func splitTrailingPunct(s string) (core, suffix string) {
	core = strings.TrimRightFunc(s, unicode.IsPunct)
	return core, s[len(core):]
}
