package prompt

import (
	"fmt"
	"strings"
)

// GetAnalysisSystemPrompt provides strict directions and schema for JSON output.
func GetAnalysisSystemPrompt() string {
	return `You are a careful document analyst. Many documents are medical reports, lab results, prescriptions or letters written for patients. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- summary is 2-4 plain-language sentences a non-expert can follow.
- documentType is a short lowercase label such as lab_report, prescription, discharge_summary, imaging_report, invoice, contract, letter or other.
- keyFindings lists the most important facts, values or decisions in the document, most important first.
- recommendations lists concrete, conservative actions for the reader. Never invent a diagnosis.
- wordCount and pageCount echo the numbers given in the prompt.
- degraded is false.

Schema (example with empty values):
{
  "summary": "<string>",
  "documentType": "<string>",
  "keyFindings": ["<string>"],
  "recommendations": ["<string>"],
  "wordCount": 0,
  "pageCount": 0,
  "degraded": false
}`
}

// GetAnalysisUserPrompt wraps the extracted text with the counts the model must echo.
func GetAnalysisUserPrompt(fileName, text string, pages, words int) string {
	return fmt.Sprintf("File name: %s\nPage count: %d\nWord count: %d\n\nDocument text:\n%s", fileName, pages, words, text)
}

// GetChatSystemPrompt grounds the conversation in the document context.
func GetChatSystemPrompt(documentContext string) string {
	return `You answer questions about a single document the user uploaded. Use only the document context below. If the answer is not in the document, say so plainly. Explain technical or medical terms in everyday language and keep answers short.

Document context:
` + documentContext
}

// GetRewriteSystemPrompt asks for the same content in a different register.
func GetRewriteSystemPrompt(style string) string {
	return fmt.Sprintf(`Rewrite the user's text in a %s style. Keep every fact, number and name unchanged. Do not add information. Return only the rewritten text with no preamble and no quotes.`, strings.TrimSpace(style))
}

// GetNextStepsSystemPrompt asks for an ordered list as a JSON object.
func GetNextStepsSystemPrompt() string {
	return `Based on the document context provided by the user, suggest the practical next steps the reader should take, most urgent first. Keep each step to one sentence and never invent a diagnosis. Respond with one JSON object only, no markdown: {"steps": ["<string>"]}`
}
