package api

import (
	"errors"
	"net/http"

	"github.com/querybot/querybot/internal/archive"
	"github.com/querybot/querybot/internal/storage"
)

func handleGetExchange(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exchanges == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "exchange archive is not enabled", false, nil)
		return
	}
	date := r.PathValue("date")
	id := r.PathValue("id")
	exchange, err := deps.Exchanges.Load(r.Context(), date, id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "EXCHANGE_NOT_FOUND", "exchange not found", false, map[string]any{"date": date, "id": id})
			return
		}
		if errors.Is(err, storage.ErrInvalidPath) {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EXCHANGE_REF", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "EXCHANGE_LOAD_FAILED", "failed to load exchange", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, exchange)
}
