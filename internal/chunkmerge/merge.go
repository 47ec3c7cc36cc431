// Package chunkmerge joins consecutive transcript chunks that were produced
// from overlapping audio windows. Adjacent chunks share roughly 30 seconds of
// speech; the merger locates that shared region and keeps it once. All
// offsets are rune offsets so Hebrew text measures the same as Latin text.
package chunkmerge

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// minOverlap is the smallest exact overlap worth removing, in runes.
	minOverlap = 50
	// maxOverlap bounds the exact-match scan window, in runes.
	maxOverlap = 800
	// fuzzyWindow bounds the sentence-level fallback scan, in runes.
	fuzzyWindow = 1500
	// minSentenceLen is the shortest sentence the fallback considers.
	minSentenceLen = 20
	// fuzzyCandidates caps how many sentences are compared on each side.
	fuzzyCandidates = 10
	// fuzzySimilarity is the positional char-match ratio required to treat
	// two sentences as the same utterance.
	fuzzySimilarity = 0.7
)

var sentenceSplitPattern = regexp.MustCompile(`[\n.?!]`)

// Merge folds chunks left to right, removing the overlap between each pair.
// A single chunk is returned unchanged. Empty input is the only error.
func Merge(chunks []string) (string, error) {
	if len(chunks) == 0 {
		return "", errors.New("chunkmerge: no chunks to merge")
	}

	merged := chunks[0]
	for _, chunk := range chunks[1:] {
		merged = mergeTwo(merged, chunk)
	}
	return merged, nil
}

// mergeTwo joins two consecutive chunks. When an overlap is found the
// duplicated prefix of right is dropped; otherwise the chunks are
// concatenated on a newline so no content is ever lost.
func mergeTwo(left, right string) string {
	overlap := findOverlap(left, right)
	if overlap > 0 {
		return left + "\n" + string([]rune(right)[overlap:])
	}
	return left + "\n" + right
}

// findOverlap returns the rune offset into right at which unique content
// starts, or 0 when no overlap is detected.
//
// The primary scan looks for the largest exact match between the tail of
// left and the head of right within maxOverlap runes. When speech engines
// transcribe the shared audio slightly differently no exact match exists, so
// a fallback compares sentences near the seam position by position and cuts
// at the first pair similar enough to be the same utterance.
func findOverlap(left, right string) int {
	leftRunes := []rune(left)
	rightRunes := []rune(right)

	tail := leftRunes
	if len(tail) > maxOverlap {
		tail = tail[len(tail)-maxOverlap:]
	}
	head := rightRunes
	if len(head) > maxOverlap {
		head = head[:maxOverlap]
	}

	limit := len(tail)
	if len(head) < limit {
		limit = len(head)
	}

	best := 0
	for size := minOverlap; size <= limit; size++ {
		if string(tail[len(tail)-size:]) == string(head[:size]) {
			best = size
		}
	}
	if best > 0 {
		return best
	}

	return fuzzyOverlap(leftRunes, rightRunes)
}

// fuzzyOverlap compares sentence candidates around the seam. Both sides are
// restricted to fuzzyWindow runes; eligible sentences are longer than
// minSentenceLen after trimming, and only the fuzzyCandidates nearest the
// seam on each side are tried. A match cuts at the rune offset of the right
// sentence's first occurrence in the full right text.
func fuzzyOverlap(left, right []rune) int {
	leftWindow := left
	if len(leftWindow) > fuzzyWindow {
		leftWindow = leftWindow[len(leftWindow)-fuzzyWindow:]
	}
	rightWindow := right
	if len(rightWindow) > fuzzyWindow {
		rightWindow = rightWindow[:fuzzyWindow]
	}

	leftSentences := splitSentences(string(leftWindow))
	rightSentences := splitSentences(string(rightWindow))

	if len(leftSentences) > fuzzyCandidates {
		leftSentences = leftSentences[len(leftSentences)-fuzzyCandidates:]
	}
	if len(rightSentences) > fuzzyCandidates {
		rightSentences = rightSentences[:fuzzyCandidates]
	}

	rightText := string(right)
	for i := len(leftSentences) - 1; i >= 0; i-- {
		for _, candidate := range rightSentences {
			if !similarSentences(leftSentences[i], candidate) {
				continue
			}
			byteIdx := strings.Index(rightText, candidate)
			if byteIdx <= 0 {
				continue
			}
			return utf8.RuneCountInString(rightText[:byteIdx])
		}
	}

	return 0
}

// splitSentences breaks text on sentence terminators and newlines, dropping
// fragments at or below minSentenceLen runes after trimming.
func splitSentences(text string) []string {
	var sentences []string
	for _, part := range sentenceSplitPattern.Split(text, -1) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > minSentenceLen {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

// similarSentences reports whether a and b align position by position with a
// char-match ratio above fuzzySimilarity. Both must be longer than 30 runes;
// shorter fragments match too easily.
func similarSentences(a, b string) bool {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) <= 30 || len(br) <= 30 {
		return false
	}

	n := len(ar)
	if len(br) < n {
		n = len(br)
	}
	common := 0
	for i := 0; i < n; i++ {
		if ar[i] == br[i] {
			common++
		}
	}

	longest := len(ar)
	if len(br) > longest {
		longest = len(br)
	}
	return float64(common)/float64(longest) > fuzzySimilarity
}

// Describe renders a short human-readable summary of a merge for logging.
func Describe(chunks []string, merged string) string {
	total := 0
	for _, c := range chunks {
		total += utf8.RuneCountInString(c)
	}
	return fmt.Sprintf("%d chunks, %d chars in, %d chars out",
		len(chunks), total, utf8.RuneCountInString(merged))
}
