package api

import (
	"net/http"
	"strings"

	"github.com/querybot/querybot/internal/archive"
	"github.com/querybot/querybot/internal/nl2sql"
)

type askRequest struct {
	Question string        `json:"question"`
	History  []nl2sql.Turn `json:"history"`
}

type askResponse struct {
	Answer    string             `json:"answer"`
	SQL       string             `json:"sql"`
	Execution *archive.Execution `json:"execution"`
	Exchange  *archive.Ref       `json:"exchange,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}

	var request askRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	for i, turn := range request.History {
		if err := turn.Validate(); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_HISTORY", err.Error(), false, map[string]any{"index": i})
			return
		}
	}

	answer := deps.Assistant.AnswerQuestion(r.Context(), request.Question, request.History)
	response := askResponse{
		Answer:   answer.Text,
		SQL:      answer.SQL,
		Exchange: answer.Exchange,
	}
	if answer.Executed {
		execution := archive.ExecutionFrom(answer.Result)
		response.Execution = &execution
	}
	if answer.Err != nil {
		response.Error = answer.Err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}
