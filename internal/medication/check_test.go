package medication_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/refua-labs/medscribe/internal/medication"
)

func TestCheckDetectsBrandGenericDuplicate(t *testing.T) {
	t.Parallel()

	result := medication.Check(
		"---תרופות---\n• Lipitor 20 mg פעם ביום\n• Atorvastatin 20 mg פעם ביום")

	if len(result.DuplicateGroups) != 1 {
		t.Fatalf("got %d duplicate groups, want 1: %v", len(result.DuplicateGroups), result.DuplicateGroups)
	}
	group := result.DuplicateGroups[0]
	sort.Strings(group)
	if len(group) != 2 || group[0] != "Atorvastatin" || group[1] != "Lipitor" {
		t.Errorf("duplicate group = %v, want [Atorvastatin Lipitor]", group)
	}
}

func TestCheckHebrewAndEnglishNamesShareGroup(t *testing.T) {
	t.Parallel()

	result := medication.Check("המטופל נוטל אליקוויס, ובנוסף רשום לו Apixaban 5 mg")

	if len(result.DuplicateGroups) != 1 {
		t.Fatalf("got %d duplicate groups, want 1: %v", len(result.DuplicateGroups), result.DuplicateGroups)
	}
}

func TestCheckNoDuplicatesForDistinctDrugs(t *testing.T) {
	t.Parallel()

	result := medication.Check("• Lipitor 20 mg\n• Eliquis 5 mg\n• Metformin 850 mg")

	if len(result.DuplicateGroups) != 0 {
		t.Errorf("unexpected duplicate groups: %v", result.DuplicateGroups)
	}
	want := []string{"Eliquis", "Lipitor", "Metformin"}
	if len(result.MedsFound) != len(want) {
		t.Fatalf("MedsFound = %v, want %v", result.MedsFound, want)
	}
	for i, name := range want {
		if result.MedsFound[i] != name {
			t.Errorf("MedsFound[%d] = %q, want %q", i, result.MedsFound[i], name)
		}
	}
}

func TestCheckDosagePlausibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		flagged bool
	}{
		{"within range", "Ramipril 10 mg פעם ביום", false},
		{"above range but within tolerance", "Ramipril 15 mg פעם ביום", false},
		{"above tolerance", "Ramipril 16 mg פעם ביום", true},
		{"below tolerance", "Clonazepam 0.1 mg לפני השינה", true},
		{"hebrew mg notation", `רמיפריל 16 מ"ג פעם ביום`, false}, // Hebrew names have no dosage entry
		{"unknown drug skipped", "Obscurol 9000 mg", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := medication.Check(tc.text)
			if got := len(result.DosageWarnings) > 0; got != tc.flagged {
				t.Errorf("Check(%q) flagged=%v, want %v (warnings: %v)",
					tc.text, got, tc.flagged, result.DosageWarnings)
			}
		})
	}
}

func TestCheckDosageWarningNamesDrugAndRange(t *testing.T) {
	t.Parallel()

	result := medication.Check("Ramipril 16 mg")

	if len(result.DosageWarnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(result.DosageWarnings))
	}
	w := result.DosageWarnings[0]
	for _, part := range []string{"Ramipril", "16", "1.25-10", "מינון חריג"} {
		if !strings.Contains(w, part) {
			t.Errorf("warning %q missing %q", w, part)
		}
	}
}

func TestGroupFor(t *testing.T) {
	t.Parallel()

	group := medication.GroupFor("lipitor")
	if group == nil {
		t.Fatal("GroupFor(lipitor) = nil")
	}
	found := false
	for _, name := range group {
		if name == "Atorvastatin" {
			found = true
		}
	}
	if !found {
		t.Errorf("group %v missing Atorvastatin", group)
	}

	if medication.GroupFor("water") != nil {
		t.Error("GroupFor(water) returned a group")
	}
}

func TestSuggestPhoneticMisspelling(t *testing.T) {
	t.Parallel()

	suggestion, confidence, ok := medication.Suggest("Lipator")
	if !ok {
		t.Fatal("Suggest(Lipator) found nothing")
	}
	if suggestion != "Lipitor" {
		t.Errorf("Suggest(Lipator) = %q, want Lipitor", suggestion)
	}
	if confidence < 0.7 {
		t.Errorf("confidence = %v, want >= 0.7", confidence)
	}
}

func TestSuggestExactName(t *testing.T) {
	t.Parallel()

	suggestion, confidence, ok := medication.Suggest("eliquis")
	if !ok || suggestion != "Eliquis" || confidence != 1 {
		t.Errorf("Suggest(eliquis) = (%q, %v, %v), want (Eliquis, 1, true)", suggestion, confidence, ok)
	}
}

func TestSuggestNoMatch(t *testing.T) {
	t.Parallel()

	if s, _, ok := medication.Suggest("xqzwv"); ok {
		t.Errorf("Suggest(xqzwv) = %q, want no match", s)
	}
}
