package summary

import (
	"encoding/json"
	"regexp"
)

// jsonBlockPattern extracts the first-to-last brace span from a model reply,
// tolerating markdown fences and prose around the JSON object.
var jsonBlockPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// llmValidation is the cross-check verdict returned by the validation prompt.
// DuplicateMedications stays raw because models return it either as a list of
// pairs or as a flat list of strings.
type llmValidation struct {
	HallucinatedMedications []string        `json:"hallucinated_medications"`
	DuplicateMedications    json.RawMessage `json:"duplicate_medications"`
	SuspiciousDosages       []string        `json:"suspicious_dosages"`
	FabricatedInfo          []string        `json:"fabricated_info"`
	UnrecognizedMedications []string        `json:"unrecognized_medications"`
	UnrecognizedConditions  []string        `json:"unrecognized_conditions"`
	MisclassifiedSymptoms   []string        `json:"misclassified_symptoms"`
	ChiefComplaintOK        *bool           `json:"chief_complaint_ok"`
	ChiefComplaintNote      string          `json:"chief_complaint_note"`
	FaithfulnessScore       float64         `json:"overall_faithfulness_score"`
}

// parseValidation extracts the JSON object from a raw model reply. ok is
// false when no parseable object is present; the caller then leaves the
// report at its defaults rather than failing the pipeline.
func parseValidation(raw string) (llmValidation, bool) {
	var v llmValidation

	block := jsonBlockPattern.FindString(raw)
	if block == "" {
		return v, false
	}
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return v, false
	}
	return v, true
}

// duplicatePairs normalizes the duplicate_medications field. Pair lists keep
// their first two elements; bare strings become (name, "").
func (v llmValidation) duplicatePairs() [][2]string {
	if len(v.DuplicateMedications) == 0 {
		return nil
	}

	var asLists [][]string
	if err := json.Unmarshal(v.DuplicateMedications, &asLists); err == nil {
		pairs := make([][2]string, 0, len(asLists))
		for _, l := range asLists {
			var p [2]string
			if len(l) > 0 {
				p[0] = l[0]
			}
			if len(l) > 1 {
				p[1] = l[1]
			}
			pairs = append(pairs, p)
		}
		return pairs
	}

	var asStrings []string
	if err := json.Unmarshal(v.DuplicateMedications, &asStrings); err == nil {
		pairs := make([][2]string, 0, len(asStrings))
		for _, s := range asStrings {
			pairs = append(pairs, [2]string{s, ""})
		}
		return pairs
	}

	return nil
}

// apply merges the LLM verdict into the report. Missing chief_complaint_ok
// defaults to true; a missing score stays 0 and fails the score threshold.
func (v llmValidation) apply(r *Report) {
	r.HallucinatedMedications = v.HallucinatedMedications
	r.DuplicateMedications = v.duplicatePairs()
	r.SuspiciousDosages = v.SuspiciousDosages
	r.FabricatedInfo = v.FabricatedInfo
	r.ChiefComplaintOK = v.ChiefComplaintOK == nil || *v.ChiefComplaintOK
	r.ChiefComplaintNote = v.ChiefComplaintNote
	r.FaithfulnessScore = v.FaithfulnessScore
	r.UnrecognizedMedications = v.UnrecognizedMedications
	r.UnrecognizedConditions = v.UnrecognizedConditions
	r.MisclassifiedSymptoms = v.MisclassifiedSymptoms
}
