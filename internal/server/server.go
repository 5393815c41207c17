package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/NedPK/ai-retrieval-audit/internal/audit"
	"github.com/NedPK/ai-retrieval-audit/internal/engine"
	"github.com/NedPK/ai-retrieval-audit/internal/helper"
	"github.com/NedPK/ai-retrieval-audit/internal/policy"
)

// Server exposes the ask engine and the audit read paths as a JSON API.
type Server struct {
	engine *engine.Engine
	store  *audit.Store
	router *mux.Router
}

func New(e *engine.Engine, store *audit.Store) *Server {
	s := &Server{engine: e, store: store, router: mux.NewRouter()}

	s.router.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	s.router.HandleFunc("/audit/requests", s.handleListRequests).Methods(http.MethodGet)
	s.router.HandleFunc("/audit/requests/{id}", s.handleGetDetails).Methods(http.MethodGet)
	s.router.Use(s.logRequests)

	return s
}

func (s *Server) Run(addr string) error {
	log.Info().Str("addr", addr).Msg("Serving")
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := helper.GenerateUUID()
		if err != nil {
			id = "unknown"
		}
		log.Info().Str("request_id", id).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request")
		next.ServeHTTP(w, r)
	})
}

type askRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
	UserID   string `json:"user_id"`
	Feature  string `json:"feature"`
}

type errorResponse struct {
	Error      string         `json:"error"`
	Blocked    bool           `json:"blocked,omitempty"`
	Categories map[string]int `json:"dlp_categories,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses: policy
// blocks are a distinct, user-facing failure, validation is a bad request,
// everything else is internal.
func writeError(w http.ResponseWriter, err error) {
	var block *policy.PolicyBlockError
	if errors.As(err, &block) {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:      block.Message,
			Blocked:    true,
			Categories: block.Stats.Categories,
		})
		return
	}

	var invalid *policy.ValidationError
	if errors.As(err, &invalid) || errors.Is(err, audit.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	log.Error().Err(err).Msg("Request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	res, err := s.engine.Ask(r.Context(), engine.AskParams{
		Question: req.Question,
		K:        req.K,
		UserID:   req.UserID,
		Feature:  req.Feature,
		Source:   "server:ask",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
			return
		}
		limit = n
	}

	reqs, err := s.store.ListRecentRequests(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) handleGetDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id must be an integer"})
		return
	}

	details, err := s.store.GetDetails(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
