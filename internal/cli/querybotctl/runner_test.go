package querybotctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordedRequest struct {
	Method string
	Path   string
	APIKey string
	Body   map[string]any
}

func newRecordingServer(t *testing.T, respond func(w http.ResponseWriter, r recordedRequest)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	requests := &[]recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorded := recordedRequest{Method: r.Method, Path: r.URL.Path, APIKey: r.Header.Get("X-API-Key")}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &recorded.Body); err != nil {
				t.Errorf("request body is not JSON: %s", raw)
			}
		}
		*requests = append(*requests, recorded)
		w.Header().Set("Content-Type", "application/json")
		respond(w, recorded)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func TestRunSchemaCommand(t *testing.T) {
	srv, requests := newRecordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"text":"Artist(ArtistId INTEGER)","generation":1}`))
	})

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "-api-key", "k1", "schema"}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	got := (*requests)[0]
	if got.Method != http.MethodGet || got.Path != "/v1/schema" || got.APIKey != "k1" {
		t.Fatalf("request = %#v", got)
	}
	if !strings.Contains(stdout.String(), `"text": "Artist(ArtistId INTEGER)"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunRefreshSchemaCommand(t *testing.T) {
	srv, requests := newRecordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"generation":2}`))
	})

	code := Run(context.Background(), []string{"-base-url", srv.URL, "refresh-schema"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got := (*requests)[0]; got.Method != http.MethodPost || got.Path != "/v1/schema/refresh" {
		t.Fatalf("request = %#v", got)
	}
}

func TestRunAskCommandJoinsArguments(t *testing.T) {
	srv, requests := newRecordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"answer":"AC/DC","sql":"SELECT Name FROM Artist LIMIT 1"}`))
	})

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "Name", "one", "artist"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	got := (*requests)[0]
	if got.Method != http.MethodPost || got.Path != "/v1/ask" || got.Body["question"] != "Name one artist" {
		t.Fatalf("request = %#v", got)
	}
	if !strings.Contains(stdout.String(), `"answer": "AC/DC"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunAskRequiresQuestion(t *testing.T) {
	var stderr bytes.Buffer
	if code := Run(context.Background(), []string{"ask"}, Options{Stderr: &stderr}); code != 2 {
		t.Fatalf("exit code = %d", code)
	}
}

func TestRunConnectCommand(t *testing.T) {
	srv, requests := newRecordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"status":"connected"}`))
	})

	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"connect",
		"-driver", "postgres",
		"-user", "reader",
		"-password", "secret",
		"-host", "db.internal",
		"-port", "5432",
		"-database", "sales",
		"-read-only",
	}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	got := (*requests)[0]
	if got.Method != http.MethodPut || got.Path != "/v1/database" {
		t.Fatalf("request = %s %s", got.Method, got.Path)
	}
	if got.Body["driver"] != "postgres" || got.Body["host"] != "db.internal" || got.Body["port"] != float64(5432) ||
		got.Body["password"] != "secret" || got.Body["read_only"] != true {
		t.Fatalf("body = %#v", got.Body)
	}
}

func TestRunConnectRejectsInvalidTarget(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"connect", "-driver", "oracle"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "invalid target") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunExchangeCommand(t *testing.T) {
	srv, requests := newRecordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"id":"ex-1"}`))
	})

	code := Run(context.Background(), []string{"-base-url", srv.URL, "exchange", "2026-01-02", "ex-1"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got := (*requests)[0]; got.Path != "/v1/exchanges/2026-01-02/ex-1" {
		t.Fatalf("path = %s", got.Path)
	}
	if code := Run(context.Background(), []string{"-base-url", srv.URL, "exchange", "2026-01-02"}, Options{}); code != 2 {
		t.Fatalf("exit code without id = %d", code)
	}
}

func TestRunChatKeepsHistory(t *testing.T) {
	answers := []string{"There are 5 artists.", "Iron Maiden has 5 tracks."}
	srv, requests := newRecordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		answer := answers[0]
		answers = answers[1:]
		_ = json.NewEncoder(w).Encode(map[string]any{"answer": answer, "sql": "SELECT 1"})
	})

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "chat"}, Options{
		Stdin:  strings.NewReader("How many artists are there?\n\nWhich one has the most tracks?\nexit\n"),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if len(*requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(*requests))
	}

	first := (*requests)[0].Body["history"].([]any)
	if len(first) != 2 || first[0].(map[string]any)["text"] != greeting {
		t.Fatalf("first history = %#v", first)
	}
	if current := first[1].(map[string]any); current["role"] != "human" || current["text"] != "How many artists are there?" {
		t.Fatalf("first history does not end with the question: %#v", current)
	}
	second := (*requests)[1].Body["history"].([]any)
	if len(second) != 4 {
		t.Fatalf("second history = %#v", second)
	}
	human := second[1].(map[string]any)
	ai := second[2].(map[string]any)
	current := second[3].(map[string]any)
	if human["role"] != "human" || human["text"] != "How many artists are there?" {
		t.Fatalf("human turn = %#v", human)
	}
	if ai["role"] != "assistant" || ai["text"] != "There are 5 artists." {
		t.Fatalf("ai turn = %#v", ai)
	}
	if current["role"] != "human" || current["text"] != "Which one has the most tracks?" {
		t.Fatalf("current turn = %#v", current)
	}

	out := stdout.String()
	for _, want := range []string{"AI: " + greeting, "AI: There are 5 artists.", "AI: Iron Maiden has 5 tracks.", "SQL Query: SELECT 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestRunChatStopsOnHTTPFailure(t *testing.T) {
	srv, _ := newRecordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_code":"UNAUTHORIZED"}`))
	})

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "chat"}, Options{
		Stdin:  strings.NewReader("hello\n"),
		Stderr: &stderr,
	})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "http 401") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv, _ := newRecordingServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_code":"FORBIDDEN"}`))
	})

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "refresh-schema"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"lag"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "usage: querybotctl") {
		t.Fatal("expected usage output")
	}
}
