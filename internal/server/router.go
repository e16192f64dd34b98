package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the HTTP handler for every route of the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.LogRequests)
	r.Use(middleware.Recoverer)

	r.MethodNotAllowed(s.methodNotAllowed)
	r.NotFound(s.notFound)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.With(s.webhookMiddleware()...).Post("/webhooks/call-logs", s.webhook)
		r.With(RequireAPIToken(s.apiToken)).Post("/reports/{kind}", s.report)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// webhookMiddleware returns the metrics, rate limit and token checks of the webhook route.
func (s *Server) webhookMiddleware() []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{CountWebhooks}
	if s.rateLimit > 0 {
		stack = append(stack, httprate.Limit(
			s.rateLimit,
			s.rateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(s.tooManyRequests),
		))
	}
	if s.token != "" {
		stack = append(stack, RequireToken(s.token))
	}
	return stack
}
