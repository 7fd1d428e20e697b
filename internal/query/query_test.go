package query

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestSucceededRendersRowsAsTuples(t *testing.T) {
	result := Succeeded(Result{
		Columns: []string{"ArtistId", "Name", "track_count"},
		Rows: [][]any{
			{int64(1), "AC/DC", int64(3)},
			{int64(2), "Guns N' Roses", nil},
		},
	})

	want := `[(1, 'AC/DC', 3), (2, "Guns N' Roses", None)]`
	if got := result.Text(); got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
	if result.IsFailure() {
		t.Fatal("expected successful result")
	}
	rows, ok := result.Result()
	if !ok || len(rows.Rows) != 2 {
		t.Fatalf("Result() = %#v, %v", rows, ok)
	}
}

func TestSucceededRendersSingleColumnTuples(t *testing.T) {
	result := Succeeded(Result{
		Columns: []string{"Name"},
		Rows:    [][]any{{"Queen"}, {true}, {1.5}},
	})
	if got, want := result.Text(), "[('Queen',), (True,), (1.5,)]"; got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestSucceededRendersEmptyResult(t *testing.T) {
	if got := Succeeded(Result{Duration: time.Millisecond}).Text(); got != "[]" {
		t.Fatalf("Text() = %q", got)
	}
	var zero ExecutionResult
	if zero.IsFailure() || zero.Text() != "[]" {
		t.Fatalf("zero ExecutionResult = %q failed=%v", zero.Text(), zero.IsFailure())
	}
}

func TestFailedRendersErrorMessage(t *testing.T) {
	result := Failed(errors.New("Error 1142: SELECT command denied to user 'reader'"))

	if !result.IsFailure() {
		t.Fatal("expected failed result")
	}
	want := "SQL execution error: Error 1142: SELECT command denied to user 'reader'"
	if got := result.Text(); got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
	if _, ok := result.Result(); ok {
		t.Fatal("Result() ok = true for failed execution")
	}
	message, failed := result.ErrorMessage()
	if !failed || message != "Error 1142: SELECT command denied to user 'reader'" {
		t.Fatalf("ErrorMessage() = %q, %v", message, failed)
	}
}

func TestFailedWithNilError(t *testing.T) {
	if got := Failed(nil).Text(); got != "SQL execution error: unknown error" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestTextQuotesStringsLikeRepr(t *testing.T) {
	result := Succeeded(Result{Rows: [][]any{{
		"plain",
		"It's",
		`say "hi" it's`,
		"line\nbreak",
		`back\slash`,
	}}})
	want := `[('plain', "It's", 'say "hi" it\'s', 'line\nbreak', 'back\\slash')]`
	if got := result.Text(); got != want {
		t.Fatalf("Text() = %s, want %s", got, want)
	}
}

func TestTextRendersNonFiniteFloats(t *testing.T) {
	result := Succeeded(Result{Rows: [][]any{{math.Inf(1), math.Inf(-1), math.NaN(), float32(2.5)}}})
	if got, want := result.Text(), "[(inf, -inf, nan, 2.5)]"; got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestJSONRowsAreEncodable(t *testing.T) {
	recorded := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	result := Result{
		Columns: []string{"ratio", "low", "missing", "tags", "at", "raw", "name", "count", "ok"},
		Rows: [][]any{{
			math.Inf(1),
			math.Inf(-1),
			math.NaN(),
			map[any]any{"k": int32(1)},
			recorded,
			[]byte("bytes"),
			nil,
			int64(7),
			true,
		}},
	}

	raw, err := json.Marshal(result.JSONRows())
	if err != nil {
		t.Fatalf("json.Marshal(JSONRows()) error = %v", err)
	}
	var decoded [][]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	row := decoded[0]
	if row[0] != "inf" || row[1] != "-inf" || row[2] != "nan" {
		t.Fatalf("non-finite floats = %#v", row[:3])
	}
	if row[3] != "map[k:1]" {
		t.Fatalf("map value = %#v", row[3])
	}
	if row[4] != "2026-01-02T03:04:05Z" || row[5] != "bytes" || row[6] != nil || row[7] != float64(7) || row[8] != true {
		t.Fatalf("row = %#v", row)
	}
	if got := (Result{}).JSONRows(); got != nil {
		t.Fatalf("JSONRows() of empty result = %#v", got)
	}
}
