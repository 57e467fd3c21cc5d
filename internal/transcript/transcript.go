// Package transcript reconciles the stream of partial and final recognition
// results into the transcript shown to the user.
//
// A live transcript has two parts: the ordered list of finalized segments,
// which only ever grows, and a single live partial that is replaced by every
// new partial and cleared when a final commits. Finalized segments are joined
// with a newline.
//
// Finals may pass through a [Corrector] before they are committed; the
// [VocabularyCorrector] fixes misheard domain terms using phonetic matching.
package transcript

import (
	"strings"
	"sync"
)

// SegmentSeparator joins finalized segments in [Aggregator.Text].
const SegmentSeparator = "\n"

// Correction captures a single substitution made by a [Corrector].
type Correction struct {
	// Original is the phrase as produced by the recognizer.
	Original string

	// Corrected is the replacement vocabulary term.
	Corrected string

	// Confidence is the matcher's similarity score (0.0–1.0).
	Confidence float64
}

// Corrector rewrites a final segment before it is committed. Implementations
// must be safe for concurrent use and must return text unchanged when they
// make no substitution.
type Corrector interface {
	Correct(text string) (corrected string, corrections []Correction)
}

// Option is a functional option for configuring an [Aggregator].
type Option func(*Aggregator)

// WithCorrector runs c over every final segment before it is committed.
func WithCorrector(c Corrector) Option {
	return func(a *Aggregator) {
		a.corrector = c
	}
}

// Aggregator holds the authoritative transcript state. Writes are expected
// from a single owner (the session loop); reads may come from any goroutine.
type Aggregator struct {
	corrector Corrector

	mu       sync.RWMutex
	segments []string
	partial  string
}

// New returns an empty Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{}
	for _, o := range opts {
		o(a)
	}
	return a
}

// OnPartial replaces the live partial. The last write wins.
func (a *Aggregator) OnPartial(text string) {
	a.mu.Lock()
	a.partial = text
	a.mu.Unlock()
}

// OnFinal commits text as a new segment and clears the live partial. It
// returns the committed (possibly corrected) segment and any corrections.
func (a *Aggregator) OnFinal(text string) (string, []Correction) {
	var corrections []Correction
	if a.corrector != nil {
		text, corrections = a.corrector.Correct(text)
	}

	a.mu.Lock()
	a.segments = append(a.segments, text)
	a.partial = ""
	a.mu.Unlock()
	return text, corrections
}

// Reset clears the finalized segments and the live partial.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.segments = nil
	a.partial = ""
	a.mu.Unlock()
}

// Text returns the finalized transcript.
func (a *Aggregator) Text() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return strings.Join(a.segments, SegmentSeparator)
}

// Partial returns the live partial, or "" when none is outstanding.
func (a *Aggregator) Partial() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.partial
}

// Segments returns a copy of the finalized segments.
func (a *Aggregator) Segments() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.segments))
	copy(out, a.segments)
	return out
}

// Len returns the number of finalized segments.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.segments)
}

// View is a consistent copy of the transcript state.
type View struct {
	Segments []string
	Partial  string
}

// Text joins the view's segments like [Aggregator.Text].
func (v View) Text() string { return strings.Join(v.Segments, SegmentSeparator) }

// Len returns the number of finalized segments.
func (v View) Len() int { return len(v.Segments) }

// View returns the segments and the partial under a single lock.
func (a *Aggregator) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	segs := make([]string, len(a.segments))
	copy(segs, a.segments)
	return View{Segments: segs, Partial: a.partial}
}
