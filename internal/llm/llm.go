// Package llm provides text-generation clients for the hosted model
// providers the assistant can use.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator returns a single completion for a prompt. Implementations do not
// retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const (
	ProviderOpenAI      = "openai"
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
)

type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

func New(cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg)
	case ProviderHuggingFace:
		return NewHuggingFaceClient(cfg)
	case ProviderGemini:
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}

type endpoint struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newEndpoint(cfg Config, defaultModel string) (endpoint, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return endpoint{}, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return endpoint{}, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return endpoint{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// postJSON sends payload and decodes a successful response into out. kind
// names the call in error messages.
func (e endpoint) postJSON(ctx context.Context, kind, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", kind, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request %s: %w", kind, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response body: %w", kind, err)
	}
	if resp.StatusCode >= 400 {
		return &StatusError{Kind: kind, StatusCode: resp.StatusCode, Body: string(rawRespBody)}
	}
	if err := json.Unmarshal(rawRespBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", kind, err)
	}
	return nil
}

// StatusError reports a non-success HTTP status from a provider.
type StatusError struct {
	Kind       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed status=%d body=%s", e.Kind, e.StatusCode, e.Body)
}
