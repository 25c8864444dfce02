package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/index"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/llm"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/logging"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/rag"
)

// defaultSearchK is how many results GET /api/v1/search returns when the
// caller does not pass k.
const defaultSearchK = 3

// handleAsk handles POST /api/v1/ask. It answers the most recent user
// question in the submitted conversation.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.metrics.askRequestsTotal.WithLabelValues("error").Inc()
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		s.metrics.askRequestsTotal.WithLabelValues("error").Inc()
		return
	}

	turns := make([]qa.Turn, 0, len(req.Messages))
	for _, m := range req.Messages {
		turns = append(turns, qa.Turn{Role: qa.Role(m.Role), Content: m.Content})
	}

	answer, err := s.engine.Answer(r.Context(), turns)
	if err != nil {
		status, outcome := askErrorStatus(err)
		log.Warn("ask failed",
			slog.Int("status", status),
			slog.Any("error", err),
		)
		writeError(w, status, err.Error())
		s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
	s.metrics.askRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.askDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
}

// askErrorStatus maps an engine error to an HTTP status and metric outcome.
// Validation problems are the caller's fault, generation problems are the
// provider's, and index problems are ours.
func askErrorStatus(err error) (int, string) {
	var vErr *rag.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, "error"
	}
	var gErr *llm.GenerationError
	if errors.As(err, &gErr) {
		if gErr.Timeout {
			return http.StatusGatewayTimeout, "timeout"
		}
		return http.StatusBadGateway, "error"
	}
	var sErr *index.StoreError
	if errors.As(err, &sErr) {
		return http.StatusInternalServerError, "error"
	}
	return http.StatusInternalServerError, "error"
}

// handleAddQuestion handles POST /api/v1/questions. The record is embedded
// into the index and mirrored to the catalog.
func (s *Server) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req addQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec := qa.NewRecord(req.Title, req.Content, req.Topic, req.School, req.Audience, req.Language)
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.idx.Upsert(r.Context(), rec.Document()); err != nil {
		log.Error("question upsert failed", slog.String("id", rec.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not store question")
		return
	}
	if s.catalog != nil {
		if err := s.catalog.Save(r.Context(), rec); err != nil {
			// The index already holds the record, so the request still
			// succeeded from the caller's point of view.
			log.Error("catalog save failed", slog.String("id", rec.ID), slog.Any("error", err))
		}
	}

	s.metrics.questionsAddedTotal.Inc()
	writeJSON(w, http.StatusOK, addQuestionResponse{
		Status:  "success",
		Message: "Question ajoutée avec succès à la base de connaissances",
		ID:      rec.ID,
	})
}

// handleListQuestions handles GET /api/v1/questions, returning the most
// recently added records from the catalog.
func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not configured")
		return
	}

	n := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		n = v
	}

	recs, err := s.catalog.Recent(r.Context(), n)
	if err != nil {
		logging.FromContext(r.Context()).Error("catalog list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list questions")
		return
	}

	out := make([]questionSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, questionSummary{
			ID:       rec.ID,
			Title:    rec.Title,
			Topic:    rec.Topic,
			Language: rec.Language,
			Date:     rec.Date,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSearch handles GET /api/v1/search?q=...&k=N, returning the closest
// records without generating an answer.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	k := defaultSearchK
	if raw := r.URL.Query().Get("k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = v
	}

	results, err := s.engine.Search(r.Context(), query, k)
	if err != nil {
		var vErr *rag.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(r.Context()).Error("search failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		id := res.Document.Metadata["id"]
		if id == "" {
			id = res.Document.ID
		}
		hits = append(hits, searchHit{ID: id, Text: res.Document.Text, Score: res.Score})
	}
	writeJSON(w, http.StatusOK, hits)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
