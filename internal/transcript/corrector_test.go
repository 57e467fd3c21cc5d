package transcript_test

import (
	"slices"
	"sync"
	"testing"

	"github.com/MrWong99/livescribe/internal/transcript"
)

func TestVocabularyCorrector_Correct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		vocab     []string
		text      string
		want      string
		wantFixes int
	}{
		{
			name:      "split word merged",
			vocab:     []string{"Grafana"},
			text:      "open graph ana dashboard",
			want:      "open Grafana dashboard",
			wantFixes: 1,
		},
		{
			name:      "multi-word term keeps leading article",
			vocab:     []string{"Tower of Whispers"},
			text:      "we met at the tower of wispers.",
			want:      "we met at the Tower of Whispers.",
			wantFixes: 1,
		},
		{
			name:      "misspelled single word",
			vocab:     []string{"Grafana", "Prometheus"},
			text:      "check grafanna now",
			want:      "check Grafana now",
			wantFixes: 1,
		},
		{
			name:  "no vocabulary",
			vocab: nil,
			text:  "hello   world",
			want:  "hello   world",
		},
		{
			name:  "nothing matches keeps original spacing",
			vocab: []string{"Grafana"},
			text:  "hello   world",
			want:  "hello   world",
		},
		{
			name:  "already correct",
			vocab: []string{"Grafana"},
			text:  "Grafana is up",
			want:  "Grafana is up",
		},
		{
			name:  "empty text",
			vocab: []string{"Grafana"},
			text:  "",
			want:  "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := transcript.NewVocabularyCorrector(nil, tc.vocab)
			got, fixes := c.Correct(tc.text)
			if got != tc.want {
				t.Errorf("Correct(%q) = %q, want %q", tc.text, got, tc.want)
			}
			if len(fixes) != tc.wantFixes {
				t.Errorf("Correct(%q) corrections = %+v, want %d", tc.text, fixes, tc.wantFixes)
			}
		})
	}
}

func TestVocabularyCorrector_CorrectionDetails(t *testing.T) {
	t.Parallel()

	c := transcript.NewVocabularyCorrector(nil, []string{"Grafana"})
	_, fixes := c.Correct("open graph ana dashboard")
	if len(fixes) != 1 {
		t.Fatalf("got %d corrections, want 1", len(fixes))
	}
	f := fixes[0]
	if f.Original != "graph ana" || f.Corrected != "Grafana" {
		t.Errorf("correction = %+v", f)
	}
	if f.Confidence < 0.7 || f.Confidence > 1 {
		t.Errorf("confidence = %f, want within [0.7, 1]", f.Confidence)
	}
}

func TestVocabularyCorrector_SetVocabulary(t *testing.T) {
	t.Parallel()

	c := transcript.NewVocabularyCorrector(nil, nil)
	if got, _ := c.Correct("check grafanna now"); got != "check grafanna now" {
		t.Fatalf("Correct without vocabulary = %q", got)
	}

	c.SetVocabulary([]string{"Grafana", "grafana", " "})
	if got := c.Vocabulary(); !slices.Equal(got, []string{"Grafana"}) {
		t.Errorf("Vocabulary() = %q", got)
	}
	if got, _ := c.Correct("check grafanna now"); got != "check Grafana now" {
		t.Errorf("Correct after SetVocabulary = %q", got)
	}
}

func TestVocabularyCorrector_ConcurrentSwap(t *testing.T) {
	t.Parallel()

	c := transcript.NewVocabularyCorrector(nil, []string{"Grafana"})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 100 {
			c.Correct("graph ana")
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 100 {
			if i%2 == 0 {
				c.SetVocabulary(nil)
			} else {
				c.SetVocabulary([]string{"Grafana"})
			}
		}
	}()
	wg.Wait()
}

func TestAggregator_WithVocabularyCorrector(t *testing.T) {
	t.Parallel()

	a := transcript.New(transcript.WithCorrector(transcript.NewVocabularyCorrector(nil, []string{"Grafana"})))
	a.OnFinal("hello world")
	a.OnFinal("open graph ana dashboard")

	if got, want := a.Text(), "hello world\nopen Grafana dashboard"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}
