package ai

import "context"

// Backend is the language-model capability the service consumes.
type Backend interface {
	// Analyze returns a JSON object describing the document text.
	Analyze(ctx context.Context, in AnalysisInput) (string, error)
	Chat(ctx context.Context, message string, history []ChatTurn, documentContext string) (string, error)
	Rewrite(ctx context.Context, text, style string) (string, error)
	NextSteps(ctx context.Context, documentContext string) ([]string, error)
}
