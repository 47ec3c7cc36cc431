package align_test

import (
	"strings"
	"testing"

	"github.com/refua-labs/medscribe/internal/align"
	"github.com/refua-labs/medscribe/pkg/provider/stt"
)

func TestTimestampsDirectMatch(t *testing.T) {
	t.Parallel()

	finalText := "[רופא]: שלום, מה שלומך?\n[מטופל]: יש לי כאבים"
	sttWords := []stt.Word{
		{Text: "שלום", OffsetMS: 0, DurationMS: 400},
		{Text: "מה", OffsetMS: 450, DurationMS: 200},
		{Text: "שלומך", OffsetMS: 700, DurationMS: 300},
		{Text: "יש", OffsetMS: 1100, DurationMS: 200},
		{Text: "לי", OffsetMS: 1350, DurationMS: 150},
		{Text: "כאבים", OffsetMS: 1550, DurationMS: 400},
	}

	got := align.Timestamps(sttWords, finalText)

	if len(got) != 6 {
		t.Fatalf("got %d words, want 6", len(got))
	}

	// Punctuation on the final-text side must not break the match.
	for i, w := range got {
		if w.IsInterpolated {
			t.Errorf("word %d (%q) marked interpolated", i, w.Word)
		}
	}
	if *got[0].StartMS != 0 || *got[0].EndMS != 400 {
		t.Errorf("first word interval = [%d, %d], want [0, 400]", *got[0].StartMS, *got[0].EndMS)
	}
	if got[0].Word != "שלום," {
		t.Errorf("word text lost its original form: %q", got[0].Word)
	}

	for i, w := range got {
		wantSpeaker, wantLine := "רופא", 0
		if i >= 3 {
			wantSpeaker, wantLine = "מטופל", 1
		}
		if w.Speaker == nil || *w.Speaker != wantSpeaker {
			t.Errorf("word %d speaker = %v, want %q", i, w.Speaker, wantSpeaker)
		}
		if w.LineIndex != wantLine {
			t.Errorf("word %d line_index = %d, want %d", i, w.LineIndex, wantLine)
		}
	}
}

func TestTimestampsInterpolatesCorrectedWord(t *testing.T) {
	t.Parallel()

	finalText := "[רופא]: אחד שתיים שלוש"
	sttWords := []stt.Word{
		{Text: "אחד", OffsetMS: 0, DurationMS: 300},
		{Text: "בלה", OffsetMS: 400, DurationMS: 300},
		{Text: "שלוש", OffsetMS: 900, DurationMS: 300},
	}

	got := align.Timestamps(sttWords, finalText)
	if len(got) != 3 {
		t.Fatalf("got %d words, want 3", len(got))
	}

	if got[0].IsInterpolated || got[2].IsInterpolated {
		t.Error("matched boundary words marked interpolated")
	}
	if !got[1].IsInterpolated {
		t.Error("corrected middle word not marked interpolated")
	}
	if *got[1].StartMS != 300 || *got[1].EndMS != 900 {
		t.Errorf("interpolated interval = [%d, %d], want [300, 900]",
			*got[1].StartMS, *got[1].EndMS)
	}
}

func TestTimestampsLeadingGapStartsAtZero(t *testing.T) {
	t.Parallel()

	got := align.Timestamps(
		[]stt.Word{{Text: "אחד", OffsetMS: 500, DurationMS: 300}},
		"[רופא]: חדש אחד",
	)
	if len(got) != 2 {
		t.Fatalf("got %d words, want 2", len(got))
	}
	if *got[0].StartMS != 0 || *got[0].EndMS != 500 {
		t.Errorf("leading gap interval = [%d, %d], want [0, 500]",
			*got[0].StartMS, *got[0].EndMS)
	}
}

func TestTimestampsTrailingGapExtends(t *testing.T) {
	t.Parallel()

	got := align.Timestamps(
		[]stt.Word{{Text: "אחד", OffsetMS: 500, DurationMS: 300}},
		"[רופא]: אחד חדש",
	)
	if len(got) != 2 {
		t.Fatalf("got %d words, want 2", len(got))
	}
	if *got[1].StartMS != 800 || *got[1].EndMS != 1000 {
		t.Errorf("trailing gap interval = [%d, %d], want [800, 1000]",
			*got[1].StartMS, *got[1].EndMS)
	}
}

func TestTimestampsMonotoneAndComplete(t *testing.T) {
	t.Parallel()

	finalText := strings.Join([]string{
		"[רופא]: שלום מה מביא אותך אלינו היום",
		"[מטופל]: יש לי כאבים חזקים בחזה כבר שבוע",
		"[רופא]: נעשה בדיקות מקיפות עכשיו",
	}, "\n")

	// STT saw most words but missed some and garbled others.
	sttWords := []stt.Word{
		{Text: "שלום", OffsetMS: 0, DurationMS: 300},
		{Text: "מה", OffsetMS: 350, DurationMS: 150},
		{Text: "מביא", OffsetMS: 550, DurationMS: 250},
		{Text: "היום", OffsetMS: 1200, DurationMS: 300},
		{Text: "יש", OffsetMS: 2000, DurationMS: 150},
		{Text: "לי", OffsetMS: 2200, DurationMS: 100},
		{Text: "קאבים", OffsetMS: 2350, DurationMS: 300},
		{Text: "חזקים", OffsetMS: 2700, DurationMS: 300},
		{Text: "בחזה", OffsetMS: 3050, DurationMS: 250},
		{Text: "שבוע", OffsetMS: 3600, DurationMS: 300},
		{Text: "נעשה", OffsetMS: 4500, DurationMS: 250},
		{Text: "בדיקות", OffsetMS: 4800, DurationMS: 350},
	}

	got := align.Timestamps(sttWords, finalText)

	var wantWords []string
	for _, line := range strings.Split(finalText, "\n") {
		parts := strings.Fields(line)
		wantWords = append(wantWords, parts[1:]...)
	}
	if len(got) != len(wantWords) {
		t.Fatalf("got %d words, want %d", len(got), len(wantWords))
	}
	for i, w := range got {
		if w.Word != wantWords[i] {
			t.Errorf("word %d = %q, want %q", i, w.Word, wantWords[i])
		}
		if w.StartMS == nil || w.EndMS == nil {
			t.Fatalf("word %d (%q) has nil timestamps", i, w.Word)
		}
	}

	for i := 1; i < len(got); i++ {
		if *got[i].StartMS < *got[i-1].StartMS {
			t.Errorf("start_ms decreases at word %d: %d < %d",
				i, *got[i].StartMS, *got[i-1].StartMS)
		}
	}
}

func TestTimestampsEmptySTTFallback(t *testing.T) {
	t.Parallel()

	got := align.Timestamps(nil, "[מטופל]: אין לי הקלטה")

	if len(got) != 3 {
		t.Fatalf("got %d words, want 3", len(got))
	}
	for i, w := range got {
		if w.StartMS != nil || w.EndMS != nil {
			t.Errorf("word %d has timestamps without STT data", i)
		}
		if !w.IsInterpolated {
			t.Errorf("word %d not marked interpolated", i)
		}
		if w.Speaker == nil || *w.Speaker != "מטופל" {
			t.Errorf("word %d speaker = %v", i, w.Speaker)
		}
		if w.LineIndex != 0 {
			t.Errorf("word %d line_index = %d, want 0", i, w.LineIndex)
		}
	}
}

func TestTimestampsEmptyFinalText(t *testing.T) {
	t.Parallel()

	got := align.Timestamps([]stt.Word{{Text: "שלום"}}, "")
	if len(got) != 0 {
		t.Errorf("got %d words for empty text, want 0", len(got))
	}
}
