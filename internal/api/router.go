package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts every route on r. auth guards only the /api admin group.
func (s *Server) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Get("/health", s.HandleHealth)
	r.Get("/health/live", s.HandleLiveness)
	r.Get("/health/ready", s.HandleReadiness)
	r.Get("/health/startup", s.HandleStartup)
	r.Get("/metrics", s.HandleMetrics)
	r.Get("/providers/status", s.HandleProvidersStatus)
	r.Get("/debug/test-mode", s.HandleDebugTestMode)

	r.Post("/generate", s.HandleGenerate)
	r.Post("/", s.HandleWebhook)
	r.Post("/webhook", s.HandleWebhook)
	r.Get("/webhook", s.HandleWebhookInfo)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Get("/api/posts", s.HandleListPosts)
		r.Get("/api/posts/{id}", s.HandleGetPost)
		r.Get("/api/posts/{id}/related", s.HandleRelatedPosts)
		r.Get("/api/blog/stats", s.HandleBlogStats)
		r.Post("/api/blog/rebuild", s.HandleRebuildIndex)
		r.Post("/api/search", s.HandleSearchSemantic)
		r.Post("/api/search/title", s.HandleSearchByTitle)
	})
}
