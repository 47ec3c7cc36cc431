package textmatch_test

import (
	"testing"

	"github.com/refua-labs/medscribe/internal/textmatch"
)

func TestMatchingBlocks_Identical(t *testing.T) {
	t.Parallel()

	a := []string{"one", "two", "three"}
	m := textmatch.NewMatcher(a, a)

	blocks := m.MatchingBlocks()
	if len(blocks) != 2 {
		t.Fatalf("MatchingBlocks() = %v, want one full block plus sentinel", blocks)
	}
	if blocks[0] != (textmatch.Block{A: 0, B: 0, Size: 3}) {
		t.Errorf("blocks[0] = %+v, want full-length block at origin", blocks[0])
	}
	if blocks[1] != (textmatch.Block{A: 3, B: 3, Size: 0}) {
		t.Errorf("sentinel = %+v, want {3 3 0}", blocks[1])
	}
}

func TestMatchingBlocks_Disjoint(t *testing.T) {
	t.Parallel()

	m := textmatch.NewMatcher([]string{"a", "b"}, []string{"c", "d"})
	blocks := m.MatchingBlocks()
	if len(blocks) != 1 || blocks[0].Size != 0 {
		t.Fatalf("MatchingBlocks() = %v, want only the sentinel", blocks)
	}
	if got := m.Ratio(); got != 0 {
		t.Errorf("Ratio() = %f, want 0", got)
	}
}

func TestMatchingBlocks_Insertion(t *testing.T) {
	t.Parallel()

	// b has one word inserted in the middle; both surrounding runs must be
	// reported as matches covering every shared word.
	a := []string{"the", "doctor", "said", "come", "back", "tomorrow"}
	b := []string{"the", "doctor", "said", "please", "come", "back", "tomorrow"}

	m := textmatch.NewMatcher(a, b)
	blocks := m.MatchingBlocks()

	matched := 0
	for _, blk := range blocks {
		matched += blk.Size
		for k := 0; k < blk.Size; k++ {
			if a[blk.A+k] != b[blk.B+k] {
				t.Fatalf("block %+v pairs %q with %q", blk, a[blk.A+k], b[blk.B+k])
			}
		}
	}
	if matched != len(a) {
		t.Errorf("matched %d words, want all %d", matched, len(a))
	}
}

func TestMatchingBlocks_Ordered(t *testing.T) {
	t.Parallel()

	a := []rune("abcdxyzefg")
	b := []rune("abcd123efg456")
	blocks := textmatch.NewMatcher(a, b).MatchingBlocks()

	prevA, prevB := -1, -1
	for _, blk := range blocks {
		if blk.A < prevA || blk.B < prevB {
			t.Fatalf("blocks out of order: %v", blocks)
		}
		prevA, prevB = blk.A, blk.B
	}
}

func TestRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "shalom", b: "shalom", want: 1.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "abc", b: "", want: 0.0},
		{name: "half shared", a: "ab", b: "abcdef", want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := textmatch.Ratio(tt.a, tt.b); got != tt.want {
				t.Errorf("Ratio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatio_NearDuplicateHebrew(t *testing.T) {
	t.Parallel()

	// Paraphrased repeats of the same Hebrew sentence should score above the
	// 0.85 near-duplicate threshold used by the deduplication pass.
	a := "המטופל מתלונן על כאבים בחזה מזה שבועיים"
	b := "המטופל מתלונן על כאבים בחזה מזה שבוע"
	if got := textmatch.Ratio(a, b); got <= 0.85 {
		t.Errorf("Ratio() = %f, want > 0.85 for near-duplicate lines", got)
	}
}
