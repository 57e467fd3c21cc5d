// Package phonetic matches misheard words against a vocabulary of expected
// terms (names, jargon, product names) using Double Metaphone encoding
// combined with Jaro-Winkler similarity.
//
// Matching runs in two passes:
//
//  1. Phonetic candidates: a term qualifies when any of its Double Metaphone
//     codes overlaps a code of the input. Among those, the term with the
//     highest Jaro-Winkler score at or above the phonetic threshold wins.
//
//  2. Fuzzy fallback: when no phonetic candidate qualifies, pure Jaro-Winkler
//     similarity is tested against every term using the stricter fuzzy
//     threshold.
//
// Terms are prepared once into a [Vocabulary] so that the per-word cost on
// the live transcript path is only the input's own encoding.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// DefaultPhoneticThreshold is the minimum score for a phonetic candidate.
	DefaultPhoneticThreshold = 0.70

	// DefaultFuzzyThreshold is the minimum score for the fuzzy fallback.
	DefaultFuzzyThreshold = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when the
// matcher falls back to pure string similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// ─── Vocabulary ───────────────────────────────────────────────────────────────

type term struct {
	original string
	lower    string
	tokens   []string
	codes    map[string]struct{}
}

// Vocabulary is a prepared, immutable list of terms. It is safe for
// concurrent use.
type Vocabulary struct {
	terms    []term
	maxWords int
}

// NewVocabulary prepares terms for matching. Blank terms are skipped and
// duplicates (case-insensitive) are kept once, first spelling wins.
func NewVocabulary(terms []string) *Vocabulary {
	v := &Vocabulary{}
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		tokens := strings.Fields(lower)
		v.terms = append(v.terms, term{
			original: strings.TrimSpace(t),
			lower:    lower,
			tokens:   tokens,
			codes:    codesForTokens(tokens),
		})
		v.maxWords = max(v.maxWords, len(tokens))
	}
	return v
}

// Len returns the number of distinct terms.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// MaxWords returns the word count of the longest term, or 0 when empty.
func (v *Vocabulary) MaxWords() int {
	if v == nil {
		return 0
	}
	return v.maxWords
}

// Terms returns the prepared terms in their configured spelling.
func (v *Vocabulary) Terms() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.terms))
	for i, t := range v.terms {
		out[i] = t.original
	}
	return out
}

// ─── Matcher ──────────────────────────────────────────────────────────────────

// Matcher resolves words and short phrases to vocabulary terms. It is
// read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: DefaultPhoneticThreshold,
		fuzzyThreshold:    DefaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the term in v that best matches phrase, which may be a single
// word or a space-separated n-gram. The returned term keeps its configured
// casing. When matched is false, corrected equals phrase and confidence is 0.
func (m *Matcher) Match(phrase string, v *Vocabulary) (corrected string, confidence float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if v.Len() == 0 || lower == "" {
		return phrase, 0, false
	}
	tokens := strings.Fields(lower)
	codes := codesForTokens(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range v.terms {
		score := bestJWScore(tokens, t.tokens, lower, t.lower)
		if codesOverlap(codes, t.codes) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t.original, score, true
			}
			continue
		}
		if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = t.original, score
		}
	}

	if best == "" {
		return phrase, 0, false
	}
	return best, bestScore, true
}

// Align scores how well phrase lines up with term word by word, as the
// lowest Jaro-Winkler score over aligned word pairs. phrase may have one word
// more than term when the recognizer split a word in two ("graph ana" for
// "Grafana"); the best merge of two adjacent words is scored then. ok is false
// for any other word count or when the score is below the phonetic threshold.
func (m *Matcher) Align(phrase, term string) (score float64, ok bool) {
	p := strings.Fields(strings.ToLower(phrase))
	t := strings.Fields(strings.ToLower(term))
	switch {
	case len(p) == 0 || len(t) == 0:
		return 0, false
	case len(p) == len(t):
		score = positionalScore(p, t)
	case len(p) == len(t)+1:
		merged := make([]string, len(t))
		for j := range len(t) {
			copy(merged, p[:j])
			merged[j] = p[j] + p[j+1]
			copy(merged[j+1:], p[j+2:])
			score = max(score, positionalScore(merged, t))
		}
	default:
		return 0, false
	}
	return score, score >= m.phoneticThreshold
}

func positionalScore(a, b []string) float64 {
	score := 1.0
	for i := range a {
		score = min(score, matchr.JaroWinkler(a[i], b[i], false))
	}
	return score
}

// MatchTerms is a convenience wrapper that prepares terms on every call.
// Prefer [Matcher.Match] with a shared [Vocabulary] on hot paths.
func (m *Matcher) MatchTerms(phrase string, terms []string) (string, float64, bool) {
	return m.Match(phrase, NewVocabulary(terms))
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes (tokens without consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity among the full strings,
// the space-stripped strings ("elder nacks" vs "eldrinax") and every token
// pair.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(termTokens, ""), false)
		score = max(score, joined)
	}

	for _, it := range inputTokens {
		for _, tt := range termTokens {
			score = max(score, matchr.JaroWinkler(it, tt, false))
		}
	}
	return score
}
