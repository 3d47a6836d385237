package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clawinfra/clawroute/internal/auth"
	"github.com/clawinfra/clawroute/internal/httputil"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Routes assembles the full HTTP surface. /health and /metrics are open;
// the proxy, stats, and admin routes require the configured token.
func Routes(h *Handler, token func() string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(token))

		r.Post("/v1/chat/completions", h.ChatCompletions)
		r.Post("/v1/messages", h.Messages)
		r.Get("/stats", h.Stats)

		r.Route("/api", func(r chi.Router) {
			r.Get("/config", h.GetConfig)
			r.Post("/enable", h.Enable)
			r.Post("/disable", h.Disable)
			r.Post("/dry-run/enable", h.DryRunEnable)
			r.Post("/dry-run/disable", h.DryRunDisable)
			r.Post("/override/global", h.GlobalOverride)
			r.Post("/override/session", h.SessionOverride)
			r.Delete("/override/session", h.SessionOverrideDelete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "Unknown route: "+r.URL.Path)
	})

	return r
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
