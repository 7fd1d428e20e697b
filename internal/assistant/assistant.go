// Package assistant runs the question answering pipeline: describe the
// schema, generate a query, execute it, and describe the result.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/querybot/querybot/internal/archive"
	"github.com/querybot/querybot/internal/database"
	"github.com/querybot/querybot/internal/llm"
	"github.com/querybot/querybot/internal/nl2sql"
	"github.com/querybot/querybot/internal/observability"
	"github.com/querybot/querybot/internal/query"
	"github.com/querybot/querybot/internal/schema"
)

const failurePrefix = "An error occurred while running the SQL query. Error: "

// Database is the live connection the pipeline introspects and queries.
type Database interface {
	schema.Introspector
	Execute(ctx context.Context, statement string) (query.Result, error)
	Reconfigure(ctx context.Context, target database.Target) error
	HealthCheck(ctx context.Context) error
	Target() database.Target
}

// Recorder persists finished exchanges.
type Recorder interface {
	Record(ctx context.Context, exchange archive.Exchange) (archive.Ref, error)
}

type Deps struct {
	Database Database
	Model    llm.Generator
	Prompt   nl2sql.Config
	Archive  Recorder
	Logger   *slog.Logger
}

type Service struct {
	db          Database
	schema      *schema.Provider
	generator   *nl2sql.QueryGenerator
	synthesizer *nl2sql.AnswerSynthesizer
	archive     Recorder
	logger      *slog.Logger
}

func New(deps Deps) (*Service, error) {
	if deps.Database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("text generation model is required")
	}
	return &Service{
		db:          deps.Database,
		schema:      schema.NewProvider(deps.Database),
		generator:   nl2sql.NewQueryGenerator(deps.Model, deps.Prompt),
		synthesizer: nl2sql.NewAnswerSynthesizer(deps.Model, deps.Prompt),
		archive:     deps.Archive,
		logger:      deps.Logger,
	}, nil
}

// Answer is the outcome of one question. SQL is empty only when the query
// was never generated. Err is the pipeline failure behind a failure Text.
type Answer struct {
	Text     string
	SQL      string
	Result   query.ExecutionResult
	Executed bool
	Err      error
	Exchange *archive.Ref
}

// AnswerQuestion never fails: schema and generation errors are reported in
// Text, and execution errors are passed to the answer stage as data.
func (s *Service) AnswerQuestion(ctx context.Context, question string, history []nl2sql.Turn) Answer {
	logger := observability.Logger(ctx, s.logger)
	start := time.Now()

	answer := s.run(ctx, logger, question, history)
	if answer.Err != nil {
		answer.Text = failurePrefix + answer.Err.Error()
		logger.WarnContext(ctx, "answer_failed",
			slog.String("stage", failedStage(answer.Err)),
			slog.String("error", answer.Err.Error()),
		)
	}

	if s.archive != nil {
		ref, err := s.archive.Record(ctx, s.exchange(question, history, answer))
		if err != nil {
			logger.WarnContext(ctx, "archive_failed", slog.String("error", err.Error()))
		} else {
			answer.Exchange = &ref
		}
	}

	logger.InfoContext(ctx, "question_answered",
		slog.Bool("failed", answer.Err != nil),
		slog.Bool("execution_failed", answer.Result.IsFailure()),
		slog.String("duration", time.Since(start).String()),
	)
	return answer
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, question string, history []nl2sql.Turn) Answer {
	descriptor, err := s.schema.Describe(ctx)
	if err != nil {
		return Answer{Err: fmt.Errorf("describe schema: %w", err)}
	}
	logger.DebugContext(ctx, "schema_ready", slog.Int("tables", len(descriptor.Tables)), slog.Uint64("generation", descriptor.Generation))

	sql, err := s.generator.Generate(ctx, descriptor, history, question)
	if err != nil {
		return Answer{Err: err}
	}
	logger.DebugContext(ctx, "query_generated", slog.String("sql", sql))

	result := s.execute(ctx, sql)
	if message, failed := result.ErrorMessage(); failed {
		logger.DebugContext(ctx, "query_failed", slog.String("error", message))
	}

	text, err := s.synthesizer.Synthesize(ctx, descriptor, history, question, sql, result)
	if err != nil {
		return Answer{SQL: sql, Result: result, Executed: true, Err: err}
	}
	return Answer{Text: text, SQL: sql, Result: result, Executed: true}
}

func (s *Service) execute(ctx context.Context, sql string) query.ExecutionResult {
	start := time.Now()
	rows, err := s.db.Execute(ctx, sql)
	observability.ObserveExecution(err, time.Since(start))
	if err != nil {
		return query.Failed(err)
	}
	return query.Succeeded(rows)
}

func (s *Service) exchange(question string, history []nl2sql.Turn, answer Answer) archive.Exchange {
	exchange := archive.Exchange{
		Question: question,
		History:  history,
		SQL:      answer.SQL,
		Answer:   answer.Text,
	}
	if answer.Executed {
		exchange.Execution = archive.ExecutionFrom(answer.Result)
	}
	if answer.Err != nil {
		exchange.Error = answer.Err.Error()
	}
	return exchange
}

func failedStage(err error) string {
	var genErr *nl2sql.GenerationError
	if errors.As(err, &genErr) {
		return genErr.Stage
	}
	return "schema"
}

// Reconfigure points the assistant at another database. The schema is read
// again on the next question.
func (s *Service) Reconfigure(ctx context.Context, target database.Target) error {
	err := s.db.Reconfigure(ctx, target)
	observability.ObserveReconfiguration(err)
	logger := observability.Logger(ctx, s.logger)
	if err != nil {
		logger.WarnContext(ctx, "reconfigure_failed", slog.String("target", target.String()), slog.String("error", err.Error()))
		return err
	}
	s.schema.Invalidate()
	logger.InfoContext(ctx, "database_reconfigured", slog.String("target", target.String()))
	return nil
}

func (s *Service) Schema(ctx context.Context) (schema.Descriptor, error) {
	return s.schema.Describe(ctx)
}

func (s *Service) RefreshSchema(ctx context.Context) (schema.Descriptor, error) {
	return s.schema.Refresh(ctx)
}

func (s *Service) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

func (s *Service) Target() database.Target {
	return s.db.Target()
}
