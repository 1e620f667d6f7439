package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/braincargo/brainblog/internal/services/search"
)

// SearchRequest represents a request to search posts
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) decodeSearch(w http.ResponseWriter, r *http.Request) (SearchRequest, bool) {
	var req SearchRequest
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "Search not available")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return req, false
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return req, false
	}
	return req, true
}

// HandleSearchSemantic performs semantic (vector) search
func (s *Server) HandleSearchSemantic(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}

	results, err := s.search.SearchSemantic(r.Context(), req.Query, req.Limit)
	if errors.Is(err, search.ErrNoEmbedder) {
		writeError(w, http.StatusServiceUnavailable, "Semantic search requires an embedding provider")
		return
	}
	if err != nil {
		slog.Error("Semantic search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to perform search")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

// HandleSearchByTitle performs text-based search on post titles
func (s *Server) HandleSearchByTitle(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}

	results, err := s.search.SearchByTitle(r.Context(), req.Query, req.Limit)
	if err != nil {
		slog.Error("Title search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to perform search")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}
