package postprocess

import (
	"regexp"
	"strings"
)

// numberPattern matches integers, decimals, and percentages.
var numberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?%?\b`)

// englishTermPattern matches capitalized Latin-script tokens of length >= 2,
// which in these transcripts are almost always test names, drug brands, or
// acronyms (CT, Ultrasound, IgG4).
var englishTermPattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9-]+\b`)

// hebrewMedicalVocabulary lists Hebrew medical terms that must survive every
// corrective stage. Kept in sync with the protected-term set where the two
// overlap.
var hebrewMedicalVocabulary = []string{
	"אנדוקרדיטיס", "סרקואיד", "לימפומה", "גרנולומות", "ביופסיה",
	"סטרואידים", "אימורן", "דיגוקסין", "פרוקור", "קרדילול",
	"טמפורלית", "המטולוגים", "ראומטולוגים", "קרדיולוגים",
	"מסתמים", "פירפור", "אשפוז",
}

// extractNumbers returns every numeric token in text, in order of occurrence,
// duplicates included.
func extractNumbers(text string) []string {
	return numberPattern.FindAllString(text, -1)
}

// extractMedicalTerms returns the set of medical terms present in text:
// capitalized English tokens plus any member of the fixed Hebrew vocabulary
// that occurs as a substring.
func extractMedicalTerms(text string) map[string]struct{} {
	terms := map[string]struct{}{}
	for _, m := range englishTermPattern.FindAllString(text, -1) {
		terms[m] = struct{}{}
	}
	for _, term := range hebrewMedicalVocabulary {
		if strings.Contains(text, term) {
			terms[term] = struct{}{}
		}
	}
	return terms
}
