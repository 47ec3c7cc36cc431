package medication

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// phoneticThreshold is the minimum Jaro-Winkler score for a candidate
	// that also shares a Double Metaphone code with the input.
	phoneticThreshold = 0.70
	// fuzzyThreshold is the higher bar applied when no candidate sounds
	// like the input and only string similarity remains.
	fuzzyThreshold = 0.85
)

// Suggest returns the known medication name closest to name, for annotating
// unrecognized-medication warnings.
//
// Candidates that share a Double Metaphone code with the input are ranked by
// Jaro-Winkler score against phoneticThreshold; when nothing sounds alike, a
// pure Jaro-Winkler pass applies fuzzyThreshold instead. Hebrew names carry
// no useful metaphone codes and are only ever matched by the fuzzy pass.
// Returns ("", 0, false) when nothing plausible is found.
func Suggest(name string) (suggestion string, confidence float64, ok bool) {
	input := strings.ToLower(strings.TrimSpace(name))
	if input == "" {
		return "", 0, false
	}

	inputPrimary, inputSecondary := matchr.DoubleMetaphone(input)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, known := range KnownNames() {
		knownLower := strings.ToLower(known)
		if knownLower == input {
			return known, 1, true
		}

		score := matchr.JaroWinkler(input, knownLower, false)

		knownPrimary, knownSecondary := matchr.DoubleMetaphone(knownLower)
		phonetic := codesOverlap(inputPrimary, inputSecondary, knownPrimary, knownSecondary)

		if phonetic {
			if score >= phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{name: known, score: score, phonetic: true}
			}
		} else if !best.phonetic && score >= fuzzyThreshold && score > best.score {
			best = candidate{name: known, score: score, phonetic: false}
		}
	}

	if best.name == "" {
		return "", 0, false
	}
	return best.name, best.score, true
}

// codesOverlap reports whether any non-empty metaphone code from the first
// pair equals any from the second.
func codesOverlap(aPrimary, aSecondary, bPrimary, bSecondary string) bool {
	for _, a := range []string{aPrimary, aSecondary} {
		if a == "" {
			continue
		}
		if a == bPrimary || a == bSecondary {
			return true
		}
	}
	return false
}
