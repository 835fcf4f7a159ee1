package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/metrics/prometheus"
	"github.com/parleyhq/parley/resultstore"
	"github.com/parleyhq/parley/session"
	"github.com/parleyhq/parley/types"
)

// createDebateRequest is the POST /debates payload: a topic plus the full
// generation configuration.
type createDebateRequest struct {
	Prompt string             `json:"prompt"`
	Config types.DebateConfig `json:"config"`
}

// handleCreateDebate registers a session and returns its identity. The
// debate does not start until a stream endpoint is opened with that identity.
func (s *Server) handleCreateDebate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	// Structural validation first, with field-level detail.
	schemaResult, err := types.ValidateDebateRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: %v", err)
		return
	}
	if !schemaResult.Valid {
		details := make([]string, 0, len(schemaResult.Errors))
		for _, se := range schemaResult.Errors {
			details = append(details, se.Field+": "+se.Description)
		}
		writeError(w, http.StatusBadRequest, "invalid request: %s", strings.Join(details, "; "))
		return
	}

	var req createDebateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: %v", err)
		return
	}

	// Bounds validation on top of structure.
	if err := req.Config.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	id, err := s.registry.Create(r.Context(), req.Prompt, req.Config)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create debate session")
		return
	}

	logger.Info("debate session created",
		"debate_id", id, "rounds", req.Config.NumRounds, "debaters", req.Config.NumDebaters)
	writeJSON(w, http.StatusCreated, map[string]string{"debate_id": id})
}

// handleResult accepts a judged result for a known session and persists it.
// Judging happens outside this service; this endpoint only stores its output.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.registry.Lookup(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrInvalidID) {
			writeError(w, http.StatusNotFound, "unknown debate: %s", id)
			return
		}
		logger.Error("session lookup failed", "debate_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	if s.results == nil {
		writeError(w, http.StatusNotImplemented, "result persistence is not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var result types.DebateResult
	if err := json.Unmarshal(body, &result); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: %v", err)
		return
	}
	result.DebateID = id

	if err := result.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	if err := s.results.Persist(r.Context(), &result); err != nil {
		prometheus.RecordResultPersisted(prometheus.StatusError)
		writeError(w, http.StatusInternalServerError, "failed to persist result")
		return
	}
	prometheus.RecordResultPersisted(prometheus.StatusSuccess)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "stored",
		"filename": resultstore.Filename(&result),
	})
}
