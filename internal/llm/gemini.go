package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// GeminiClient calls the Generative Language generateContent method.
type GeminiClient struct {
	endpoint
}

func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	ep, err := newEndpoint(cfg, "gemini-pro")
	if err != nil {
		return nil, err
	}
	return &GeminiClient{endpoint: ep}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	generationConfig := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = req.MaxTokens
	}
	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": req.Prompt}}},
		},
		"generationConfig": generationConfig,
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	endpointURL := c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": c.apiKey}
	if err := c.postJSON(ctx, "generate content", endpointURL, headers, payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty generate content candidates")
	}
	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}
