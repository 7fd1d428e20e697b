package querybotctl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"

	"github.com/querybot/querybot/internal/nl2sql"
)

const greeting = "Hello! I am a SQL Query Generator bot. How can I help you today?"

type askRequest struct {
	Question string        `json:"question"`
	History  []nl2sql.Turn `json:"history,omitempty"`
}

type askResponse struct {
	Answer string `json:"answer"`
	SQL    string `json:"sql"`
}

type progress interface {
	Start()
	Stop()
}

type noProgress struct{}

func (noProgress) Start() {}
func (noProgress) Stop()  {}

// newProgress shows a spinner only when w is a file, so redirected or
// captured output stays clean.
func newProgress(w io.Writer) progress {
	file, ok := w.(*os.File)
	if !ok {
		return noProgress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(file))
	s.Suffix = " thinking..."
	return s
}

// runChat keeps the conversation on the client, starting from the greeting.
// Each question is appended to the history before it is sent.
func runChat(ctx context.Context, c client, stdin io.Reader, stdout, stderr io.Writer) int {
	history := []nl2sql.Turn{nl2sql.AssistantTurn(greeting)}
	_, _ = fmt.Fprintf(stdout, "AI: %s\n", greeting)

	indicator := newProgress(stderr)
	scanner := bufio.NewScanner(stdin)
	for {
		_, _ = fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return 0
		}

		history = append(history, nl2sql.HumanTurn(question))
		indicator.Start()
		code, body, err := c.do(ctx, http.MethodPost, "/v1/ask", askRequest{Question: question, History: history})
		indicator.Stop()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
			return 1
		}
		if code >= 400 {
			_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
			return 1
		}

		var response askResponse
		if err := json.Unmarshal(body, &response); err != nil {
			_, _ = fmt.Fprintf(stderr, "decode response: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "AI: %s\n", response.Answer)
		if response.SQL != "" {
			_, _ = fmt.Fprintf(stdout, "SQL Query: %s\n", response.SQL)
		}
		history = append(history, nl2sql.AssistantTurn(response.Answer))
	}
	_, _ = fmt.Fprintln(stdout)
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}
	return 0
}
