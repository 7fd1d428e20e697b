package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/querybot/querybot/internal/llm"
	"github.com/querybot/querybot/internal/observability"
	"github.com/querybot/querybot/internal/query"
	"github.com/querybot/querybot/internal/schema"
)

const (
	StageQuery  = "query"
	StageAnswer = "answer"
)

var ErrModelRequired = errors.New("text generation model is required")

// GenerationError reports a failed model call in one pipeline stage.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Config struct {
	Domain      string
	Temperature float64
	MaxTokens   int
}

type stage struct {
	model       llm.Generator
	prompts     PromptTemplate
	temperature float64
	maxTokens   int
}

func newStage(model llm.Generator, cfg Config) stage {
	return stage{
		model:       model,
		prompts:     PromptTemplate{Domain: cfg.Domain},
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (s stage) complete(ctx context.Context, name, prompt string) (string, error) {
	if s.model == nil {
		return "", &GenerationError{Stage: name, Err: ErrModelRequired}
	}
	start := time.Now()
	completion, err := s.model.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	observability.ObserveGeneration(name, err, time.Since(start))
	if err != nil {
		return "", &GenerationError{Stage: name, Err: err}
	}
	return completion, nil
}

// QueryGenerator turns a question into a single SQL statement.
type QueryGenerator struct {
	stage
}

func NewQueryGenerator(model llm.Generator, cfg Config) *QueryGenerator {
	return &QueryGenerator{stage: newStage(model, cfg)}
}

// Generate returns the model completion as the query with only surrounding
// whitespace removed. Output that is not SQL is returned as is.
func (g *QueryGenerator) Generate(ctx context.Context, descriptor schema.Descriptor, history []Turn, question string) (string, error) {
	prompt := g.prompts.Query(descriptor.Text(), history, question)
	completion, err := g.complete(ctx, StageQuery, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion), nil
}

// AnswerSynthesizer describes an execution result in natural language.
type AnswerSynthesizer struct {
	stage
}

func NewAnswerSynthesizer(model llm.Generator, cfg Config) *AnswerSynthesizer {
	return &AnswerSynthesizer{stage: newStage(model, cfg)}
}

func (s *AnswerSynthesizer) Synthesize(ctx context.Context, descriptor schema.Descriptor, history []Turn, question, sql string, result query.ExecutionResult) (string, error) {
	prompt := s.prompts.Answer(descriptor.Text(), history, question, sql, result.Text())
	return s.complete(ctx, StageAnswer, prompt)
}
