// Package align maps STT word timestamps onto the corrected final
// transcript.
//
// The LLM pipeline produces the authoritative text, with speaker labels and
// spelling fixes; the STT engine produces lower-quality text but word-level
// timestamps. Alignment matches the two word sequences so every word of the
// final text carries a (start, end) interval. Words the correction changed or
// inserted get timestamps interpolated from their matched neighbors.
package align

import (
	"regexp"
	"strings"

	"github.com/refua-labs/medscribe/internal/textmatch"
	"github.com/refua-labs/medscribe/pkg/provider/stt"
)

// speakerLabelPattern matches a leading speaker label like "[רופא]: ".
var speakerLabelPattern = regexp.MustCompile(`^\[([^\]]+)\]:\s*`)

// wordPunctuation strips punctuation for word comparison, including the
// Hebrew gershayim and geresh marks.
var wordPunctuation = strings.NewReplacer(
	".", "", ",", "", ";", "", ":", "", "!", "", "?", "",
	`"`, "", "'", "", "-", "", "—", "", "–", "", "…", "",
	"(", "", ")", "", "״", "", "׳", "",
)

// hebrewFinalFold maps Hebrew final letters to their medial forms so that a
// word matches regardless of where the correction placed it in a sentence.
var hebrewFinalFold = strings.NewReplacer("ך", "כ", "ם", "מ", "ן", "נ", "ף", "פ", "ץ", "צ")

// interpolatedWordMS is the assumed per-word duration when interpolating past
// the last matched timestamp.
const interpolatedWordMS = 200

// AnnotatedWord is one word of the final transcript with its aligned
// timestamps. StartMS and EndMS are nil only when no STT data was available
// at all.
type AnnotatedWord struct {
	Word           string  `json:"word"`
	StartMS        *int    `json:"start_ms"`
	EndMS          *int    `json:"end_ms"`
	Speaker        *string `json:"speaker"`
	IsInterpolated bool    `json:"is_interpolated"`
	LineIndex      int     `json:"line_index"`
}

// speakerLabel marks where a speaker label appeared in the final text.
type speakerLabel struct {
	label           string
	beforeWordIndex int
}

// Timestamps aligns sttWords onto finalText and returns one AnnotatedWord
// per word of the final text, in order. Matched words inherit their STT
// interval directly; the rest are interpolated between matched neighbors.
// start_ms is non-decreasing across the result.
func Timestamps(sttWords []stt.Word, finalText string) []AnnotatedWord {
	words, labels := stripSpeakerLabels(finalText)

	if len(words) == 0 || len(sttWords) == 0 {
		return buildFallback(words, labels)
	}

	finalNorm := make([]string, len(words))
	for i, w := range words {
		finalNorm[i] = normalizeWord(w)
	}
	sttNorm := make([]string, len(sttWords))
	for i, w := range sttWords {
		sttNorm[i] = normalizeWord(w.Text)
	}

	finalToSTT := map[int]int{}
	for _, block := range textmatch.NewMatcher(finalNorm, sttNorm).MatchingBlocks() {
		for k := 0; k < block.Size; k++ {
			finalToSTT[block.A+k] = block.B + k
		}
	}

	annotated := make([]AnnotatedWord, len(words))
	for i, word := range words {
		if sttIdx, ok := finalToSTT[i]; ok {
			start := sttWords[sttIdx].OffsetMS
			end := sttWords[sttIdx].End()
			annotated[i] = AnnotatedWord{Word: word, StartMS: &start, EndMS: &end}
		} else {
			annotated[i] = AnnotatedWord{Word: word, IsInterpolated: true}
		}
	}

	interpolateGaps(annotated)
	attachSpeakers(annotated, labels, finalText)

	return annotated
}

// stripSpeakerLabels splits the final text into a flat word list, recording
// each speaker label and the word index it precedes.
func stripSpeakerLabels(text string) ([]string, []speakerLabel) {
	var words []string
	var labels []speakerLabel

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := speakerLabelPattern.FindStringSubmatch(line); m != nil {
			labels = append(labels, speakerLabel{label: m[1], beforeWordIndex: len(words)})
			line = line[len(m[0]):]
		}

		words = append(words, strings.Fields(line)...)
	}

	return words, labels
}

// normalizeWord prepares a word for comparison: punctuation stripped,
// lowercased, final letters folded.
func normalizeWord(w string) string {
	w = wordPunctuation.Replace(w)
	w = strings.ToLower(strings.TrimSpace(w))
	return hebrewFinalFold.Replace(w)
}

// interpolateGaps fills missing timestamps by linear interpolation between
// the nearest matched neighbors. A gap at the start counts from 0; a gap at
// the end extends past the last known timestamp at interpolatedWordMS per
// word. Sub-intervals are equal width and non-overlapping, so start_ms stays
// non-decreasing.
func interpolateGaps(annotated []AnnotatedWord) {
	n := len(annotated)
	i := 0
	for i < n {
		if annotated[i].StartMS != nil {
			i++
			continue
		}

		j := i
		for j < n && annotated[j].StartMS == nil {
			j++
		}

		leftEnd := 0
		if i > 0 && annotated[i-1].EndMS != nil {
			leftEnd = *annotated[i-1].EndMS
		}
		var rightStart int
		if j < n {
			rightStart = *annotated[j].StartMS
		} else {
			rightStart = leftEnd + (j-i)*interpolatedWordMS
		}

		gap := j - i
		perWord := float64(rightStart-leftEnd) / float64(gap)
		if perWord < 0 {
			perWord = 0
		}

		for k := 0; k < gap; k++ {
			start := int(float64(leftEnd) + float64(k)*perWord)
			end := int(float64(leftEnd) + float64(k+1)*perWord)
			annotated[i+k].StartMS = &start
			annotated[i+k].EndMS = &end
		}

		i = j
	}
}

// attachSpeakers assigns the active speaker to each word and computes the
// word's line index within the final text.
func attachSpeakers(annotated []AnnotatedWord, labels []speakerLabel, finalText string) {
	labelAt := map[int]string{}
	for _, lbl := range labels {
		labelAt[lbl.beforeWordIndex] = lbl.label
	}

	var current *string
	for i := range annotated {
		if label, ok := labelAt[i]; ok {
			label := label
			current = &label
		}
		annotated[i].Speaker = current
	}

	wordIdx := 0
	lineIdx := 0
	for _, line := range strings.Split(finalText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := speakerLabelPattern.FindString(line); m != "" {
			line = line[len(m):]
		}
		for range strings.Fields(line) {
			if wordIdx < len(annotated) {
				annotated[wordIdx].LineIndex = lineIdx
				wordIdx++
			}
		}
		lineIdx++
	}
}

// buildFallback returns every word untimed and interpolated, for when either
// side of the alignment is empty.
func buildFallback(words []string, labels []speakerLabel) []AnnotatedWord {
	labelAt := map[int]string{}
	for _, lbl := range labels {
		labelAt[lbl.beforeWordIndex] = lbl.label
	}

	var current *string
	result := make([]AnnotatedWord, len(words))
	for i, word := range words {
		if label, ok := labelAt[i]; ok {
			label := label
			current = &label
		}
		result[i] = AnnotatedWord{
			Word:           word,
			Speaker:        current,
			IsInterpolated: true,
		}
	}
	return result
}
