package api

import (
	"net/http"
	"sort"

	"github.com/braincargo/brainblog/internal/config"
)

// HandleHealth reports overall status. It answers 200 even when degraded so
// that load balancers keep routing to an instance without providers.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	available := s.providersAvailable(r)
	status := map[string]any{
		"status":              "healthy",
		"timestamp":           s.timestamp(),
		"service":             ServiceName,
		"version":             s.cfg.ServiceVersion,
		"pipeline_available":  s.pipeline != nil,
		"storage_available":   s.storageOK,
		"database_available":  s.posts != nil,
		"uptime_seconds":      s.uptime(),
		"providers_available": available,
	}
	if s.pipeline != nil {
		status["pipeline"] = s.pipeline.HealthCheck(r.Context())
	}
	if !available {
		status["status"] = "degraded"
		status["message"] = "No AI providers available"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "alive",
		"timestamp":      s.timestamp(),
		"service":        ServiceName,
		"uptime_seconds": s.uptime(),
	})
}

// HandleReadiness answers 503 until at least one provider is available.
func (s *Server) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ready := s.providersAvailable(r)
	status := map[string]any{
		"status":    "ready",
		"timestamp": s.timestamp(),
		"service":   ServiceName,
		"checks": map[string]bool{
			"pipeline_available":  s.pipeline != nil,
			"providers_available": ready,
			"storage_available":   s.storageOK,
		},
	}
	code := http.StatusOK
	if !ready {
		status["status"] = "not_ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) HandleStartup(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"http_server":      true,
		"pipeline_loaded":  s.pipeline != nil,
		"generator_loaded": s.generator != nil,
	}
	started := true
	for _, ok := range checks {
		started = started && ok
	}

	status := map[string]any{
		"status":         "started",
		"timestamp":      s.timestamp(),
		"service":        ServiceName,
		"startup_checks": checks,
		"uptime_seconds": s.uptime(),
	}
	code := http.StatusOK
	if !started {
		status["status"] = "starting"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// HandleMetrics is a JSON summary for humans. OTel metrics are exported
// separately.
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":        ServiceName,
		"version":        s.cfg.ServiceVersion,
		"timestamp":      s.timestamp(),
		"uptime_seconds": s.uptime(),
		"pipeline_status": map[string]any{
			"available": s.pipeline != nil,
			"providers": s.providerNames(),
		},
		"storage_status": map[string]bool{"available": s.storageOK},
		"environment":    map[string]string{"env": s.cfg.Env},
	})
}

func (s *Server) HandleProvidersStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]bool{}
	if s.pipeline != nil {
		status = s.pipeline.Providers().Status(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": status})
}

type modelReporter interface {
	ModelFor(tier string) string
}

type providerDebug struct {
	Available    bool              `json:"available"`
	Models       map[string]string `json:"models"`
	ProviderType string            `json:"provider_type"`
}

// HandleDebugTestMode shows which models each provider resolves to, which
// differs when test mode swaps in the fast models.
func (s *Server) HandleDebugTestMode(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"test_mode":          s.cfg.TestMode,
		"pipeline_available": s.pipeline != nil,
	}
	if s.pipeline != nil {
		providers := map[string]providerDebug{}
		for _, p := range s.pipeline.Providers().All() {
			d := providerDebug{
				Available:    p.IsAvailable(r.Context()),
				Models:       map[string]string{},
				ProviderType: string(p.Type()),
			}
			if m, ok := p.(modelReporter); ok {
				for _, tier := range []string{config.TierFast, config.TierStandard, config.TierCreative} {
					d.Models[tier] = m.ModelFor(tier)
				}
			}
			providers[p.Name()] = d
		}
		info["providers"] = providers
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) providersAvailable(r *http.Request) bool {
	if s.pipeline == nil {
		return false
	}
	return len(s.pipeline.Providers().Available(r.Context())) > 0
}

func (s *Server) providerNames() []string {
	names := []string{}
	if s.pipeline == nil {
		return names
	}
	for _, p := range s.pipeline.Providers().All() {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return names
}
