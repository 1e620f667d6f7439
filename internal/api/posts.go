package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/braincargo/brainblog/internal/db"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func queryInt(r *http.Request, key string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// HandleListPosts pages through posts, newest first, optionally filtered by
// ?category=.
func (s *Server) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	if s.posts == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not available")
		return
	}

	limit := queryInt(r, "limit", defaultPageSize, maxPageSize)
	offset := queryInt(r, "offset", 0, 0)
	posts, err := s.posts.ListPosts(r.Context(), db.ListPostsParams{
		Category: r.URL.Query().Get("category"),
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		slog.Error("Failed to list posts", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list posts")
		return
	}
	if posts == nil {
		posts = []db.Post{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"posts":   posts,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	if s.posts == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not available")
		return
	}

	id := chi.URLParam(r, "id")
	post, err := s.posts.GetPost(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get post", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get post")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "post": post})
}

// HandleRelatedPosts lists the posts nearest to {id} by embedding.
func (s *Server) HandleRelatedPosts(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "Search not available")
		return
	}

	id := chi.URLParam(r, "id")
	related, err := s.search.Related(r.Context(), id, queryInt(r, "limit", 0, 0))
	if err != nil {
		slog.Error("Failed to find related posts", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to find related posts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id, "related": related})
}

func (s *Server) HandleBlogStats(w http.ResponseWriter, r *http.Request) {
	if s.posts == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not available")
		return
	}

	stats, err := s.posts.PostStats(r.Context())
	if err != nil {
		slog.Error("Failed to compute blog stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute blog stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

// HandleRebuildIndex queues a rebuild of the storage index from the database.
func (s *Server) HandleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "Task queue not available")
		return
	}

	if err := s.tasks.EnqueueIndexRebuild(r.Context()); err != nil {
		slog.Error("Failed to enqueue index rebuild", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to enqueue index rebuild")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "message": "Index rebuild queued"})
}
