package postprocess

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidSpeakers are the canonical speaker tags a transcript line may start
// with: doctor, patient, family member.
var ValidSpeakers = []string{"[רופא]", "[מטופל]", "[בן משפחה]"}

// speakerTagFixes maps frequently mis-transcribed speaker tags to their
// canonical form.
var speakerTagFixes = []struct{ wrong, correct string }{
	{"[קופא]", "[רופא]"},
	{"[רופאה]", "[רופא]"},
	{"[חולה]", "[מטופל]"},
	{"[משפחה]", "[בן משפחה]"},
}

var (
	colonSpacingPattern = regexp.MustCompile(`:\s+`)
	questionRunPattern  = regexp.MustCompile(`\?+`)
	petCTPattern        = regexp.MustCompile(`(?i)\bPET\s+CT\b`)
)

// acronymCanon maps lowercase spellings of known acronyms to their canonical
// casing. Applied case-insensitively on word boundaries.
var acronymCanon = []struct {
	pattern *regexp.Regexp
	proper  string
}{
	{regexp.MustCompile(`(?i)\bpet-ct\b`), "PET-CT"},
	{regexp.MustCompile(`(?i)\btee\b`), "TEE"},
	{regexp.MustCompile(`(?i)\bdvt\b`), "DVT"},
	{regexp.MustCompile(`(?i)\bigg4\b`), "IgG4"},
}

// normalize canonicalizes whitespace, speaker tags, punctuation, and known
// acronym spellings, dropping blank lines. One report entry is appended per
// changed line. It always succeeds; the worst case is a no-op.
func normalize(text string, report *Report) string {
	lines := strings.Split(text, "\n")
	normalized := make([]string, 0, len(lines))

	for i, line := range lines {
		original := line

		if strings.TrimSpace(line) == "" {
			continue
		}

		line = strings.Join(strings.Fields(line), " ")
		line = normalizeSpeakerTag(line)
		line = normalizePunctuation(line)
		line = normalizeAcronyms(line)

		if line != original {
			report.NormalizationChanges = append(report.NormalizationChanges,
				fmt.Sprintf("Line %d: normalized", i+1))
		}
		normalized = append(normalized, line)
	}

	return strings.Join(normalized, "\n")
}

// normalizeSpeakerTag canonicalizes the leading speaker tag: valid tags get
// exactly one space after the mandatory colon; known mistagged variants are
// rewritten to the canonical tag.
func normalizeSpeakerTag(line string) string {
	for _, tag := range ValidSpeakers {
		if !strings.HasPrefix(line, tag) {
			continue
		}
		rest := strings.TrimLeft(line[len(tag):], " \t")
		if after, ok := strings.CutPrefix(rest, ":"); ok {
			rest = ": " + strings.TrimLeft(after, " \t")
		} else {
			rest = ": " + rest
		}
		return tag + rest
	}

	for _, fix := range speakerTagFixes {
		if strings.HasPrefix(line, fix.wrong) {
			return fix.correct + line[len(fix.wrong):]
		}
	}
	return line
}

// normalizePunctuation fixes spacing after colons, collapses repeated
// question marks, and strips trailing whitespace.
func normalizePunctuation(line string) string {
	line = colonSpacingPattern.ReplaceAllString(line, ": ")
	line = questionRunPattern.ReplaceAllString(line, "?")
	return strings.TrimRight(line, " \t")
}

// normalizeAcronyms rewrites known acronyms to their canonical form,
// including the spoken two-word "PET CT" variant.
func normalizeAcronyms(line string) string {
	line = petCTPattern.ReplaceAllString(line, "PET-CT")
	for _, ac := range acronymCanon {
		line = ac.pattern.ReplaceAllString(line, ac.proper)
	}
	return line
}
