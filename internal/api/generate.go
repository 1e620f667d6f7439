package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	appsentry "github.com/braincargo/brainblog/internal/sentry"
	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/braincargo/brainblog/internal/validation"
)

type GenerateResponse struct {
	Success bool             `json:"success"`
	Blog    *blogs.Published `json:"blog"`
}

// HandleGenerate runs the pipeline for a url, topic or content request and
// returns the published post.
func (s *Server) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req validation.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := validation.ValidateGenerateRequest(req); err != nil {
		writeAppError(w, r, err)
		return
	}

	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "Pipeline system not available")
		return
	}

	ctx := r.Context()
	source := req.Source()
	slog.Info("Generate request", "source", source, "style", req.Style)

	var (
		published *blogs.Published
		err       error
	)
	switch source {
	case "url":
		published, err = s.generator.FromURL(ctx, strings.TrimSpace(req.URL), req.Title)
	case "topic":
		published, err = s.generator.FromTopic(ctx, strings.TrimSpace(req.Topic), req.Style)
	case "content":
		published, err = s.generator.FromContent(ctx, req.Content, req.Title)
	}
	if err != nil {
		slog.Warn("Generation failed", "source", source, "error", err)
		appsentry.CaptureError(ctx, err, map[string]string{"source": source})
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{Success: true, Blog: published})
}
