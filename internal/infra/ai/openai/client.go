package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/docanalyst/internal/domain/ai"
	"github.com/bryanwahyu/docanalyst/internal/domain/documents"
	"github.com/bryanwahyu/docanalyst/internal/infra/ai/prompt"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 2048
	// analysis input is capped so a long document cannot blow the context window
	maxAnalysisChars = 60000
)

// Client implements ai.Backend on the OpenAI chat completions API.
type Client struct {
	*openai.Client
	Model     string
	MaxTokens int
}

// NewClient builds a client; baseURL may point at any OpenAI-compatible endpoint.
func NewClient(apiKey, baseURL, model string, maxTokens int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, MaxTokens: maxTokens}
}

func (c *Client) Analyze(ctx context.Context, in ai.AnalysisInput) (string, error) {
	text := documents.Truncate(in.Text, maxAnalysisChars)
	words := prompt.CountWords(in.Text)
	return c.complete(ctx, true, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.GetAnalysisSystemPrompt()},
		{Role: openai.ChatMessageRoleUser, Content: prompt.GetAnalysisUserPrompt(in.FileName, text, in.Pages, words)},
	})
}

func (c *Client) Chat(ctx context.Context, message string, history []ai.ChatTurn, documentContext string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt.GetChatSystemPrompt(documentContext),
	})
	for _, turn := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: roleFor(turn.Role), Content: turn.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
	return c.complete(ctx, false, msgs)
}

func (c *Client) Rewrite(ctx context.Context, text, style string) (string, error) {
	return c.complete(ctx, false, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.GetRewriteSystemPrompt(style)},
		{Role: openai.ChatMessageRoleUser, Content: text},
	})
}

func (c *Client) NextSteps(ctx context.Context, documentContext string) ([]string, error) {
	content, err := c.complete(ctx, true, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.GetNextStepsSystemPrompt()},
		{Role: openai.ChatMessageRoleUser, Content: documentContext},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	return out.Steps, nil
}

func (c *Client) complete(ctx context.Context, jsonOut bool, msgs []openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.Model,
		Messages: msgs,
	}
	if jsonOut {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.Model) {
		req.MaxCompletionTokens = c.MaxTokens
	} else {
		req.MaxTokens = c.MaxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// roleFor maps caller roles onto the API's; anything unknown is treated as the user.
func roleFor(role string) string {
	switch strings.ToLower(role) {
	case "assistant", "ai", "bot", "model":
		return openai.ChatMessageRoleAssistant
	case "system":
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
