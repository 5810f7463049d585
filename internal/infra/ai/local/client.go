package local

import (
	"context"
	"encoding/json"

	"github.com/bryanwahyu/docanalyst/internal/domain/ai"
	"github.com/bryanwahyu/docanalyst/internal/infra/ai/prompt"
)

// Client is an offline ai.Backend built on the prompt package heuristics.
// It is used when no model API key is configured.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) Analyze(ctx context.Context, in ai.AnalysisInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := json.Marshal(prompt.AnalyzeDocument(in))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) Chat(ctx context.Context, message string, _ []ai.ChatTurn, documentContext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return prompt.AnswerFromContext(message, documentContext), nil
}

func (c *Client) Rewrite(ctx context.Context, text, style string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return prompt.RewriteText(text, style), nil
}

func (c *Client) NextSteps(ctx context.Context, documentContext string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return prompt.SuggestSteps(documentContext), nil
}
