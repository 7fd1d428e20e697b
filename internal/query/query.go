package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// ExecutionResult holds either the rows of a successful execution or the
// message of a failed one. The zero value is an empty successful result.
type ExecutionResult struct {
	result  Result
	message string
	failed  bool
}

func Succeeded(result Result) ExecutionResult {
	return ExecutionResult{result: result}
}

func Failed(err error) ExecutionResult {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	return ExecutionResult{message: message, failed: true}
}

func (e ExecutionResult) Result() (Result, bool) {
	if e.failed {
		return Result{}, false
	}
	return e.result, true
}

func (e ExecutionResult) ErrorMessage() (string, bool) {
	return e.message, e.failed
}

func (e ExecutionResult) IsFailure() bool {
	return e.failed
}

// Text renders rows as an ordered list of tuples, or the failure as
// "SQL execution error: <message>".
func (e ExecutionResult) Text() string {
	if e.failed {
		return "SQL execution error: " + e.message
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, row := range e.result.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, value := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(value))
		}
		if len(row) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}

// JSONRows returns the rows with every value replaced by one encoding/json
// can encode. Non-finite floats and values of kinds json rejects, such as
// driver map types, are replaced by their text form.
func (r Result) JSONRows() [][]any {
	if r.Rows == nil {
		return nil
	}
	rows := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		converted := make([]any, len(row))
		for j, value := range row {
			converted[j] = jsonValue(value)
		}
		rows[i] = converted
	}
	return rows
}

func jsonValue(value any) any {
	switch typed := value.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return typed
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return formatFloat(typed, 64)
		}
		return typed
	case float32:
		if math.IsNaN(float64(typed)) || math.IsInf(float64(typed), 0) {
			return formatFloat(float64(typed), 32)
		}
		return typed
	case []byte:
		return string(typed)
	default:
		if _, err := json.Marshal(typed); err != nil {
			return fmt.Sprint(typed)
		}
		return typed
	}
}

// formatValue writes scalars the way Python's repr does: None, True/False,
// nan/inf, and quoted strings. Times are quoted RFC 3339.
func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "None"
	case string:
		return quote(typed)
	case []byte:
		return quote(string(typed))
	case bool:
		if typed {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(typed, 64)
	case float32:
		return formatFloat(float64(typed), 32)
	case time.Time:
		return quote(typed.Format(time.RFC3339Nano))
	default:
		return fmt.Sprint(typed)
	}
}

func formatFloat(value float64, bitSize int) string {
	switch {
	case math.IsNaN(value):
		return "nan"
	case math.IsInf(value, 1):
		return "inf"
	case math.IsInf(value, -1):
		return "-inf"
	}
	return strconv.FormatFloat(value, 'f', -1, bitSize)
}

// quote uses single quotes unless the text holds a single quote and no double
// quote, in which case it switches to double quotes.
func quote(text string) string {
	delimiter := "'"
	if strings.Contains(text, "'") && !strings.Contains(text, `"`) {
		delimiter = `"`
	}
	replacer := strings.NewReplacer(
		`\`, `\\`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	escaped := replacer.Replace(text)
	if delimiter == "'" {
		escaped = strings.ReplaceAll(escaped, "'", `\'`)
	}
	return delimiter + escaped + delimiter
}
