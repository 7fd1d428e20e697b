package api

import (
	"errors"
	"net/http"

	"github.com/querybot/querybot/internal/database"
)

func handleReconfigure(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}

	var target database.Target
	if err := decodeJSON(r, &target); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid database target body", false, map[string]any{"details": err.Error()})
		return
	}
	if err := target.Validate(); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_TARGET", err.Error(), false, nil)
		return
	}

	if err := deps.Assistant.Reconfigure(r.Context(), target); err != nil {
		if errors.Is(err, database.ErrInvalidTarget) || errors.Is(err, database.ErrUnsupportedDriver) {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_TARGET", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "RECONFIGURE_FAILED", "failed to connect to database target", true, map[string]any{
			"details": err.Error(),
			"target":  target.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "connected", "target": target.Redacted()})
}
