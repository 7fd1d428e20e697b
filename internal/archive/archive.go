// Package archive stores finished question/answer exchanges as single-row
// parquet objects.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/querybot/querybot/internal/nl2sql"
	"github.com/querybot/querybot/internal/observability"
	"github.com/querybot/querybot/internal/query"
	"github.com/querybot/querybot/internal/storage"
)

var ErrNotFound = errors.New("exchange not found")

const contentType = "application/vnd.apache.parquet"

type Exchange struct {
	ID         string        `json:"id"`
	RecordedAt time.Time     `json:"recorded_at"`
	Question   string        `json:"question"`
	History    []nl2sql.Turn `json:"history"`
	SQL        string        `json:"sql"`
	Answer     string        `json:"answer"`
	Execution  Execution     `json:"execution"`
	// Error is the pipeline failure, if any, that produced Answer.
	Error string `json:"error,omitempty"`
}

type Execution struct {
	Ran        bool     `json:"ran"`
	Failed     bool     `json:"failed"`
	Error      string   `json:"error,omitempty"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	DurationMs int64    `json:"duration_ms"`
}

func ExecutionFrom(result query.ExecutionResult) Execution {
	if message, failed := result.ErrorMessage(); failed {
		return Execution{Ran: true, Failed: true, Error: message}
	}
	rows, _ := result.Result()
	return Execution{
		Ran:        true,
		Columns:    rows.Columns,
		Rows:       rows.JSONRows(),
		DurationMs: rows.Duration.Milliseconds(),
	}
}

// Ref locates an archived exchange.
type Ref struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Key  string `json:"key"`
}

type exchangeRow struct {
	ID               string `parquet:"id"`
	RecordedAtUnixMs int64  `parquet:"recorded_at_unix_ms"`
	Question         string `parquet:"question"`
	HistoryJSON      string `parquet:"history_json"`
	SQL              string `parquet:"sql"`
	Answer           string `parquet:"answer"`
	ExecutionRan     bool   `parquet:"execution_ran"`
	ExecutionFailed  bool   `parquet:"execution_failed"`
	ExecutionError   string `parquet:"execution_error"`
	ColumnsJSON      string `parquet:"columns_json"`
	RowsJSON         string `parquet:"rows_json"`
	DurationMs       int64  `parquet:"duration_ms"`
	Error            string `parquet:"error"`
}

type Archive struct {
	store  storage.ObjectStore
	prefix string
	now    func() time.Time
	newID  func() string
}

func New(store storage.ObjectStore, prefix string) (*Archive, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return &Archive{store: store, prefix: prefix, now: time.Now, newID: uuid.NewString}, nil
}

// Record assigns an ID and timestamp when missing and writes the exchange.
func (a *Archive) Record(ctx context.Context, exchange Exchange) (Ref, error) {
	if exchange.ID == "" {
		exchange.ID = a.newID()
	}
	if exchange.RecordedAt.IsZero() {
		exchange.RecordedAt = a.now()
	}
	exchange.RecordedAt = exchange.RecordedAt.UTC()

	ref, err := a.record(ctx, exchange)
	observability.ObserveArchiveWrite(err)
	return ref, err
}

func (a *Archive) record(ctx context.Context, exchange Exchange) (Ref, error) {
	key, err := storage.BuildExchangePath(a.prefix, exchange.ID, exchange.RecordedAt)
	if err != nil {
		return Ref{}, err
	}
	data, err := encode(exchange)
	if err != nil {
		return Ref{}, err
	}
	if _, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: contentType}); err != nil {
		return Ref{}, fmt.Errorf("store exchange %s: %w", exchange.ID, err)
	}
	return Ref{ID: exchange.ID, Date: exchange.RecordedAt.Format("2006-01-02"), Key: key}, nil
}

// Load reads the exchange recorded on date (YYYY-MM-DD, UTC) with id.
func (a *Archive) Load(ctx context.Context, date, id string) (Exchange, error) {
	key, err := storage.ExchangePathForDate(a.prefix, date, id)
	if err != nil {
		return Exchange{}, err
	}
	reader, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Exchange{}, ErrNotFound
		}
		return Exchange{}, fmt.Errorf("load exchange %s: %w", id, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return Exchange{}, fmt.Errorf("read exchange %s: %w", id, err)
	}
	return decode(data)
}

func encode(exchange Exchange) ([]byte, error) {
	historyJSON, err := json.Marshal(exchange.History)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	columnsJSON, err := json.Marshal(exchange.Execution.Columns)
	if err != nil {
		return nil, fmt.Errorf("marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(exchange.Execution.Rows)
	if err != nil {
		return nil, fmt.Errorf("marshal rows: %w", err)
	}

	row := exchangeRow{
		ID:               exchange.ID,
		RecordedAtUnixMs: exchange.RecordedAt.UnixMilli(),
		Question:         exchange.Question,
		HistoryJSON:      string(historyJSON),
		SQL:              exchange.SQL,
		Answer:           exchange.Answer,
		ExecutionRan:     exchange.Execution.Ran,
		ExecutionFailed:  exchange.Execution.Failed,
		ExecutionError:   exchange.Execution.Error,
		ColumnsJSON:      string(columnsJSON),
		RowsJSON:         string(rowsJSON),
		DurationMs:       exchange.Execution.DurationMs,
		Error:            exchange.Error,
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[exchangeRow](buf)
	if _, err := writer.Write([]exchangeRow{row}); err != nil {
		return nil, fmt.Errorf("write parquet row: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (Exchange, error) {
	reader := parquet.NewGenericReader[exchangeRow](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	rows := make([]exchangeRow, 1)
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return Exchange{}, fmt.Errorf("read parquet row: %w", err)
	}
	if count != 1 {
		return Exchange{}, fmt.Errorf("exchange object has %d rows", count)
	}
	row := rows[0]

	exchange := Exchange{
		ID:         row.ID,
		RecordedAt: time.UnixMilli(row.RecordedAtUnixMs).UTC(),
		Question:   row.Question,
		SQL:        row.SQL,
		Answer:     row.Answer,
		Execution: Execution{
			Ran:        row.ExecutionRan,
			Failed:     row.ExecutionFailed,
			Error:      row.ExecutionError,
			DurationMs: row.DurationMs,
		},
		Error: row.Error,
	}
	if err := json.Unmarshal([]byte(row.HistoryJSON), &exchange.History); err != nil {
		return Exchange{}, fmt.Errorf("decode history: %w", err)
	}
	if err := json.Unmarshal([]byte(row.ColumnsJSON), &exchange.Execution.Columns); err != nil {
		return Exchange{}, fmt.Errorf("decode columns: %w", err)
	}
	if err := json.Unmarshal([]byte(row.RowsJSON), &exchange.Execution.Rows); err != nil {
		return Exchange{}, fmt.Errorf("decode rows: %w", err)
	}
	return exchange, nil
}
