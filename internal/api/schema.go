package api

import (
	"net/http"

	"github.com/querybot/querybot/internal/schema"
)

type schemaResponse struct {
	Tables     map[string][]schema.Column `json:"tables"`
	Text       string                     `json:"text"`
	Generation uint64                     `json:"generation"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}
	descriptor, err := deps.Assistant.Schema(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "SCHEMA_FETCH_FAILED", "failed to describe database schema", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newSchemaResponse(descriptor))
}

func handleRefreshSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}
	descriptor, err := deps.Assistant.RefreshSchema(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "SCHEMA_FETCH_FAILED", "failed to describe database schema", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newSchemaResponse(descriptor))
}

func newSchemaResponse(descriptor schema.Descriptor) schemaResponse {
	tables := descriptor.Tables
	if tables == nil {
		tables = map[string][]schema.Column{}
	}
	return schemaResponse{Tables: tables, Text: descriptor.Text(), Generation: descriptor.Generation}
}
