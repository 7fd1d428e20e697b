package querybotctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/querybot/querybot/internal/database"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("querybotctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "querybot API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 120*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	httpClient := defaults.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: *timeout}
	}
	c := client{http: httpClient, baseURL: strings.TrimRight(*baseURL, "/"), apiKey: strings.TrimSpace(*apiKey)}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	switch command {
	case "health":
		return c.print(ctx, stdout, stderr, http.MethodGet, "/v1/health", nil)
	case "ready":
		return c.print(ctx, stdout, stderr, http.MethodGet, "/v1/ready", nil)
	case "schema":
		return c.print(ctx, stdout, stderr, http.MethodGet, "/v1/schema", nil)
	case "refresh-schema":
		return c.print(ctx, stdout, stderr, http.MethodPost, "/v1/schema/refresh", nil)
	case "ask":
		question := strings.TrimSpace(strings.Join(rest, " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		return c.print(ctx, stdout, stderr, http.MethodPost, "/v1/ask", askRequest{Question: question})
	case "chat":
		stdin := defaults.Stdin
		if stdin == nil {
			stdin = strings.NewReader("")
		}
		return runChat(ctx, c, stdin, stdout, stderr)
	case "connect":
		target, ok := parseTarget(rest, stderr)
		if !ok {
			return 2
		}
		return c.print(ctx, stdout, stderr, http.MethodPut, "/v1/database", target)
	case "exchange":
		if len(rest) != 2 {
			_, _ = fmt.Fprintln(stderr, "exchange requires <date> <id>")
			return 2
		}
		path := "/v1/exchanges/" + url.PathEscape(rest[0]) + "/" + url.PathEscape(rest[1])
		return c.print(ctx, stdout, stderr, http.MethodGet, path, nil)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func parseTarget(args []string, stderr io.Writer) (database.Target, bool) {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var target database.Target
	fs.StringVar(&target.Driver, "driver", database.DriverMySQL, "database driver: mysql, postgres, sqlserver or duckdb")
	fs.StringVar(&target.User, "user", "", "database user")
	fs.StringVar(&target.Password, "password", "", "database password")
	fs.StringVar(&target.Host, "host", "", "database host")
	fs.IntVar(&target.Port, "port", 0, "database port (driver default when 0)")
	fs.StringVar(&target.Database, "database", "", "database name, or file path for duckdb")
	fs.StringVar(&target.TLSCA, "tls-ca", "", "path to a CA bundle the server can read")
	fs.BoolVar(&target.ReadOnly, "read-only", false, "run generated statements read-only")

	if err := fs.Parse(args); err != nil {
		return database.Target{}, false
	}
	if err := target.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid target: %v\n", err)
		return database.Target{}, false
	}
	return target, true
}

func (c client) print(ctx context.Context, stdout, stderr io.Writer, method, path string, payload any) int {
	code, responseBody, err := c.do(ctx, method, path, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func (c client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: querybotctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                 GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema                GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  refresh-schema        POST /v1/schema/refresh")
	_, _ = fmt.Fprintln(w, "  ask <question>        POST /v1/ask")
	_, _ = fmt.Fprintln(w, "  chat                  interactive conversation over POST /v1/ask")
	_, _ = fmt.Fprintln(w, "  connect [flags]       PUT /v1/database (-driver -user -password -host -port -database -tls-ca -read-only)")
	_, _ = fmt.Fprintln(w, "  exchange <date> <id>  GET /v1/exchanges/{date}/{id}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
