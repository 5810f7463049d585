package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/docanalyst/internal/domain/ai"
)

const labReport = `Laboratory Results
Patient: Jane Doe
Hemoglobin 10.2 g/dL, below the reference range. Glucose 5.1 mmol/L is normal.
Cholesterol is elevated at 7.2 mmol/L. Specimen collected on 2026-03-01.
Follow-up with your GP is recommended.`

func TestAnalyzeDocument_LabReport(t *testing.T) {
	a := AnalyzeDocument(ai.AnalysisInput{FileName: "labs.pdf", Text: labReport, Pages: 2})

	assert.Equal(t, "lab_report", a.DocumentType)
	assert.Equal(t, 2, a.PageCount)
	assert.Equal(t, CountWords(labReport), a.WordCount)
	assert.NotEmpty(t, a.Summary)
	assert.Contains(t, a.KeyFindings, "Cholesterol is elevated at 7.2 mmol/L.")
	assert.NotEmpty(t, a.Recommendations)
	assert.False(t, a.Degraded)
}

func TestClassifyDocument(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Invoice 42. Amount due: 100 EUR. Payment terms 30 days.", "invoice"},
		{"Take 1 tablet of 500 mg twice daily. Refills: 2.", "prescription"},
		{"Dear Sam, thanks for the visit. Sincerely, Dr. Lee", "letter"},
		{"Nothing recognisable here", "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyDocument(tt.text), tt.text)
	}
}

func TestAnswerFromContext(t *testing.T) {
	ctx := "Document type: lab_report\nAnalysis summary: Mostly normal labs.\n\nDocument text:\n" + labReport

	assert.Equal(t, "Mostly normal labs.", AnswerFromContext("Summarize", ctx))
	assert.Contains(t, AnswerFromContext("What about cholesterol?", ctx), "Cholesterol is elevated")
	assert.Contains(t, AnswerFromContext("zebra migration?", ctx), "could not find")
}

func TestRewriteText(t *testing.T) {
	assert.Equal(t, "We do not know. It is fine.", RewriteText("we don't know.  it's fine.", "formal"))
	assert.Equal(t, "You have high blood pressure.", RewriteText("you have hypertension.", "simple"))
	assert.Equal(t, "This is important.", RewriteText("This is really very important.", "concise"))
	assert.Equal(t, "- One.\n- Two.", RewriteText("One. Two.", "bullets"))
	assert.Equal(t, "The cat sat.", RewriteText("The cat sat.", "poetic"))
}

func TestSuggestSteps(t *testing.T) {
	steps := SuggestSteps("Document type: invoice\nAnalysis summary: x")
	assert.Equal(t, "Check the amounts and due date, and keep proof of payment.", steps[0])
	assert.Len(t, steps, 3)
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two!", "Three?", "Four"}, SplitSentences("One. Two! Three?\n\nFour"))
}
