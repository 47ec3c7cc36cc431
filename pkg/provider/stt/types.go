package stt

// Word is one recognized word with its position in the audio. The JSON field
// names match the persisted timestamp artifacts consumed by the aligner.
type Word struct {
	// Text is the recognized word.
	Text string `json:"word"`

	// OffsetMS is where the word starts, in milliseconds from audio start.
	OffsetMS int `json:"offset_ms"`

	// DurationMS is how long the word lasts, in milliseconds.
	DurationMS int `json:"duration_ms"`
}

// End returns the word's end position in milliseconds.
func (w Word) End() int {
	return w.OffsetMS + w.DurationMS
}

// Result is a completed batch transcription.
//
// Text quality from the STT engine is secondary — the corrected transcript
// comes from the LLM pipeline. The word-level timestamps are what downstream
// alignment consumes.
type Result struct {
	// Words lists every recognized word in audio order.
	Words []Word `json:"words"`

	// Text is the engine's own full transcript, kept for alignment reference.
	Text string `json:"stt_text"`

	// DurationMS is the total recognized audio duration in milliseconds.
	DurationMS int `json:"duration_ms"`
}
