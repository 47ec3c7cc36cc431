// Package llmrewrite adapts an [llm.Provider] into the constrained rewriter
// the post-processing pipeline runs behind its safety gate. The prompt
// permits grammar and word-order fixes only and pins the numbers, medical
// terms, and speaker labels the rewrite must leave intact; the gate in
// [postprocess] rejects results it cannot trust regardless.
package llmrewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/refua-labs/medscribe/internal/postprocess"
	"github.com/refua-labs/medscribe/pkg/provider/llm"
)

const (
	maxOutputTokens = 32_000

	// The prompt quotes at most this many pinned numbers and terms; a long
	// consultation would otherwise blow past the context window.
	maxQuotedNumbers = 20
	maxQuotedTerms   = 15
)

const promptTemplate = `תקן שגיאות דקדוק ותחביר בעברית בתמלול הרפואי הבא.

כללים קריטיים - חובה לציית:
1. אסור לשנות מספרים: %s... (שמור את כולם בדיוק)
2. אסור להחליף מונחים רפואיים: %s...
3. אסור להמציא אבחנות, בדיקות, או תרופות חדשות
4. שמור על סימוני הדוברים בדיוק: [רופא], [מטופל], [בן משפחה]
5. אל תקצר את הטקסט - שמור על כל המשפטים

מה מותר לתקן:
- שגיאות דקדוק בעברית (זכר/נקבה, יחיד/רבים)
- מילים שבורות או חתוכות
- סדר מילים לא תקין במשפט

אם אתה לא בטוח - השאר את המקור!

הטקסט:
%s

החזר את הטקסט המתוקן בלבד:`

// New returns a [postprocess.Rewriter] backed by provider. The returned
// rewriter propagates provider errors; the gate turns them into keep-original
// outcomes.
func New(ctx context.Context, provider llm.Provider) postprocess.Rewriter {
	return func(text string, numbers, terms []string) (string, error) {
		prompt := fmt.Sprintf(promptTemplate,
			strings.Join(head(numbers, maxQuotedNumbers), ", "),
			strings.Join(head(terms, maxQuotedTerms), ", "),
			text)

		resp, err := provider.Complete(ctx, llm.CompletionRequest{
			Messages:  []llm.Message{{Role: "user", Content: prompt}},
			MaxTokens: maxOutputTokens,
		})
		if err != nil {
			return "", fmt.Errorf("llmrewrite: %w", err)
		}
		return resp.Content, nil
	}
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
