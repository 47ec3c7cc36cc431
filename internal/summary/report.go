package summary

import (
	"fmt"
	"strings"
)

// Report is the audit trail for a single summary generation. It combines the
// deterministic medication checks with the LLM cross-validation verdict, and
// is serialized alongside the trace so every warning in the summary text can
// be traced back to the check that produced it.
type Report struct {
	SummaryText string `json:"-"`

	// LLM validation results.
	HallucinatedMedications []string    `json:"hallucinated_medications"`
	DuplicateMedications    [][2]string `json:"duplicate_medications"`
	SuspiciousDosages       []string    `json:"suspicious_dosages"`
	FabricatedInfo          []string    `json:"fabricated_info"`
	ChiefComplaintOK        bool        `json:"chief_complaint_ok"`
	ChiefComplaintNote      string      `json:"chief_complaint_note"`
	FaithfulnessScore       float64     `json:"faithfulness_score"`

	// Deterministic checks.
	MedsInTranscript             []string    `json:"meds_in_transcript"`
	MedsInSummary                []string    `json:"meds_in_summary"`
	DeterministicDuplicatePairs  [][2]string `json:"deterministic_duplicate_pairs"`
	DeterministicDuplicateGroups [][]string  `json:"deterministic_duplicate_groups"`
	DeterministicDosageWarnings  []string    `json:"deterministic_dosage_warnings"`

	UnrecognizedMedications []string `json:"unrecognized_medications"`
	UnrecognizedConditions  []string `json:"unrecognized_conditions"`
	MisclassifiedSymptoms   []string `json:"misclassified_symptoms"`

	ValidationPassed bool `json:"validation_passed"`
}

func newReport() *Report {
	return &Report{
		ChiefComplaintOK: true,
		ValidationPassed: true,
	}
}

// String formats the report for console output.
func (r *Report) String() string {
	parts := []string{"MEDICAL SUMMARY REPORT"}
	parts = append(parts, fmt.Sprintf("  Faithfulness score: %g/10", r.FaithfulnessScore))
	parts = append(parts, fmt.Sprintf("  Validation passed: %v", r.ValidationPassed))

	if len(r.HallucinatedMedications) > 0 {
		parts = append(parts, "  Hallucinated meds: "+strings.Join(r.HallucinatedMedications, ", "))
	}
	if len(r.DeterministicDuplicateGroups) > 0 {
		groups := make([]string, len(r.DeterministicDuplicateGroups))
		for i, g := range r.DeterministicDuplicateGroups {
			groups[i] = strings.Join(g, " / ")
		}
		parts = append(parts, "  Duplicate meds: "+strings.Join(groups, "; "))
	}
	if len(r.DeterministicDosageWarnings) > 0 {
		parts = append(parts, fmt.Sprintf("  Dosage warnings: %d", len(r.DeterministicDosageWarnings)))
		for _, w := range r.DeterministicDosageWarnings {
			parts = append(parts, "    - "+w)
		}
	}
	if len(r.FabricatedInfo) > 0 {
		parts = append(parts, "  Fabricated info: "+strings.Join(r.FabricatedInfo, ", "))
	}
	if len(r.UnrecognizedMedications) > 0 {
		parts = append(parts, fmt.Sprintf("  Unrecognized meds (not in ATC): %d", len(r.UnrecognizedMedications)))
		for _, m := range r.UnrecognizedMedications {
			parts = append(parts, "    - "+m)
		}
	}
	if len(r.UnrecognizedConditions) > 0 {
		parts = append(parts, fmt.Sprintf("  Unrecognized conditions (not in ICD): %d", len(r.UnrecognizedConditions)))
		for _, c := range r.UnrecognizedConditions {
			parts = append(parts, "    - "+c)
		}
	}
	if len(r.MisclassifiedSymptoms) > 0 {
		parts = append(parts, fmt.Sprintf("  Symptoms misclassified as diseases: %d", len(r.MisclassifiedSymptoms)))
		for _, s := range r.MisclassifiedSymptoms {
			parts = append(parts, "    - "+s)
		}
	}
	if !r.ChiefComplaintOK {
		parts = append(parts, "  Chief complaint issue: "+r.ChiefComplaintNote)
	}

	return strings.Join(parts, "\n")
}
