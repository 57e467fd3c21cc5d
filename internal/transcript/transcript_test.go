package transcript_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/livescribe/internal/transcript"
)

func TestAggregator_FinalsConcatenate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		finals []string
	}{
		{name: "single", finals: []string{"hello world"}},
		{name: "three", finals: []string{"one", "two", "three"}},
		{name: "empty segment kept", finals: []string{"a", "", "b"}},
		{name: "multiline segment", finals: []string{"first\nline", "second"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a := transcript.New()
			for _, f := range tc.finals {
				a.OnPartial(f + "…")
				a.OnFinal(f)
			}
			if got, want := a.Text(), strings.Join(tc.finals, "\n"); got != want {
				t.Errorf("Text() = %q, want %q", got, want)
			}
			if a.Partial() != "" {
				t.Errorf("Partial() = %q, want empty after final", a.Partial())
			}
			if a.Len() != len(tc.finals) {
				t.Errorf("Len() = %d, want %d", a.Len(), len(tc.finals))
			}
		})
	}
}

func TestAggregator_PartialLastWriteWins(t *testing.T) {
	t.Parallel()

	a := transcript.New()
	a.OnPartial("ab")
	a.OnPartial("abc")

	if got := a.Partial(); got != "abc" {
		t.Errorf("Partial() = %q, want %q", got, "abc")
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d, want 0 finalized segments", a.Len())
	}
	if a.Text() != "" {
		t.Errorf("Text() = %q, want empty", a.Text())
	}
}

func TestAggregator_Reset(t *testing.T) {
	t.Parallel()

	a := transcript.New()
	a.OnFinal("one")
	a.OnPartial("tw")
	a.OnFinal("two")
	a.OnPartial("thr")

	a.Reset()

	if a.Text() != "" || a.Partial() != "" || a.Len() != 0 {
		t.Errorf("after Reset: Text=%q Partial=%q Len=%d; want all empty", a.Text(), a.Partial(), a.Len())
	}

	a.OnFinal("fresh")
	if a.Text() != "fresh" {
		t.Errorf("Text() after Reset+Final = %q, want %q", a.Text(), "fresh")
	}
}

func TestAggregator_SegmentsIsCopy(t *testing.T) {
	t.Parallel()

	a := transcript.New()
	a.OnFinal("one")
	segs := a.Segments()
	segs[0] = "mutated"

	if got := a.Segments()[0]; got != "one" {
		t.Errorf("Segments()[0] = %q, caller mutation leaked", got)
	}
}

func TestAggregator_View(t *testing.T) {
	t.Parallel()

	a := transcript.New()
	a.OnFinal("hello world")
	a.OnPartial("how are")

	v := a.View()
	if v.Text() != "hello world" || v.Partial != "how are" {
		t.Errorf("View() = %+v", v)
	}
	if v.Len() != 1 {
		t.Errorf("View().Len() = %d, want 1", v.Len())
	}
	if n := transcript.New().View().Len(); n != 0 {
		t.Errorf("empty View().Len() = %d, want 0", n)
	}
}

// upperCorrector is a Corrector that upper-cases every final.
type upperCorrector struct{}

func (upperCorrector) Correct(text string) (string, []transcript.Correction) {
	up := strings.ToUpper(text)
	if up == text {
		return text, nil
	}
	return up, []transcript.Correction{{Original: text, Corrected: up, Confidence: 1}}
}

func TestAggregator_WithCorrector(t *testing.T) {
	t.Parallel()

	a := transcript.New(transcript.WithCorrector(upperCorrector{}))
	committed, corrections := a.OnFinal("hello")

	if committed != "HELLO" || a.Text() != "HELLO" {
		t.Errorf("committed=%q Text=%q, want HELLO", committed, a.Text())
	}
	if len(corrections) != 1 || corrections[0].Original != "hello" {
		t.Errorf("corrections = %+v", corrections)
	}
}

func TestAggregator_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	a := transcript.New()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				_ = a.View()
				_ = a.Text()
			}
		}()
	}
	for i := range 200 {
		if i%2 == 0 {
			a.OnPartial("p")
		} else {
			a.OnFinal("f")
		}
	}
	wg.Wait()

	if a.Len() != 100 {
		t.Errorf("Len() = %d, want 100", a.Len())
	}
}
