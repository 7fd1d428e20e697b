package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// HuggingFaceClient calls the Inference API text-generation task for a hosted
// model repository such as mistralai/Mistral-7B-Instruct-v0.2.
type HuggingFaceClient struct {
	endpoint
}

func NewHuggingFaceClient(cfg Config) (*HuggingFaceClient, error) {
	ep, err := newEndpoint(cfg, "mistralai/Mistral-7B-Instruct-v0.2")
	if err != nil {
		return nil, err
	}
	return &HuggingFaceClient{endpoint: ep}, nil
}

func (c *HuggingFaceClient) Generate(ctx context.Context, req Request) (string, error) {
	parameters := map[string]any{
		"temperature":      req.Temperature,
		"return_full_text": false,
	}
	if req.MaxTokens > 0 {
		parameters["max_new_tokens"] = req.MaxTokens
	}
	payload := map[string]any{
		"inputs":     req.Prompt,
		"parameters": parameters,
	}

	var parsed []struct {
		GeneratedText string `json:"generated_text"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.postJSON(ctx, "text generation", c.modelURL(), headers, payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed) == 0 {
		return "", fmt.Errorf("empty text generation response")
	}
	return parsed[0].GeneratedText, nil
}

func (c *HuggingFaceClient) modelURL() string {
	segments := strings.Split(c.model, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return c.baseURL + "/models/" + strings.Join(segments, "/")
}
