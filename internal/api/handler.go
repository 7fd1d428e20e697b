package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querybot/querybot/internal/archive"
	"github.com/querybot/querybot/internal/assistant"
	"github.com/querybot/querybot/internal/auth"
	"github.com/querybot/querybot/internal/config"
	"github.com/querybot/querybot/internal/database"
	"github.com/querybot/querybot/internal/nl2sql"
	"github.com/querybot/querybot/internal/observability"
	"github.com/querybot/querybot/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// Assistant is the question answering pipeline behind the protected routes.
type Assistant interface {
	AnswerQuestion(ctx context.Context, question string, history []nl2sql.Turn) assistant.Answer
	Schema(ctx context.Context) (schema.Descriptor, error)
	RefreshSchema(ctx context.Context) (schema.Descriptor, error)
	Reconfigure(ctx context.Context, target database.Target) error
}

type ExchangeLoader interface {
	Load(ctx context.Context, date, id string) (archive.Exchange, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Assistant         Assistant
	Exchanges         ExchangeLoader
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	var protect func(http.Handler) http.Handler
	switch {
	case !cfg.Auth.Required:
		protect = auth.Anonymous()
	case deps.AuthMiddleware == nil:
		if deps.Logger != nil {
			deps.Logger.Error("auth required but auth middleware missing")
		}
		protect = func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		}
	default:
		protect = deps.AuthMiddleware
	}

	routes := []struct {
		pattern string
		role    string
		handle  func(Dependencies, http.ResponseWriter, *http.Request)
	}{
		{"POST /v1/ask", auth.RoleAsker, handleAsk},
		{"GET /v1/schema", auth.RoleAsker, handleSchema},
		{"POST /v1/schema/refresh", auth.RoleDBAdmin, handleRefreshSchema},
		{"PUT /v1/database", auth.RoleDBAdmin, handleReconfigure},
		{"GET /v1/exchanges/{date}/{id}", auth.RoleAsker, handleGetExchange},
	}
	for _, route := range routes {
		handle := route.handle
		role := route.role
		mux.Handle(route.pattern, protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := requireRole(r, role); err != nil {
				writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
				return
			}
			handle(deps, w, r)
		})))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return fmt.Errorf("missing identity")
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]any{
			"error_code": "RESPONSE_ENCODING_FAILED",
			"message":    err.Error(),
			"retryable":  false,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
