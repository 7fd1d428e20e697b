package llm

import (
	"context"
	"fmt"
)

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	endpoint
}

func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	ep, err := newEndpoint(cfg, "gpt-5")
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{endpoint: ep}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.postJSON(ctx, "chat completion", c.baseURL+"/v1/chat/completions", headers, payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
