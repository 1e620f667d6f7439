package sentry

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
)

const panicBody = `{"success":false,"error":"Internal server error"}`

// HTTPMiddleware gives each request its own hub. A panic is reported and
// answered with the API's JSON error body. A 5xx response is reported as a
// message unless the handler already captured an error for it.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetRequest(r)
			scope.SetTag("route", r.Method+" "+r.URL.Path)
		})

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if v := recover(); v != nil {
				hub.RecoverWithContext(r.Context(), v)
				if !sw.written {
					sw.Header().Set("Content-Type", "application/json")
					sw.WriteHeader(http.StatusInternalServerError)
					_, _ = sw.Write([]byte(panicBody))
				}
				return
			}
			if sw.status >= http.StatusInternalServerError && hub.LastEventID() == "" {
				hub.CaptureMessage(fmt.Sprintf("%s %s returned %d", r.Method, r.URL.Path, sw.status))
			}
		}()

		next.ServeHTTP(sw, r.WithContext(sentry.SetHubOnContext(r.Context(), hub)))
	})
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.written {
		return
	}
	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
