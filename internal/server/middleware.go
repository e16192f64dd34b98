package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/callsync/internal/metrics"
	"github.com/desertthunder/callsync/internal/tasks"
)

const (
	// TokenHeader carries the shared secret of webhook pushes.
	TokenHeader = "X-Webhook-Token"
	// APITokenHeader carries the secret of report triggers.
	APITokenHeader = "X-API-Token"
)

// RequireToken rejects requests whose [TokenHeader] does not match token.
func RequireToken(token string) Middleware {
	return requireHeader(TokenHeader, token, "invalid webhook token")
}

// RequireAPIToken rejects requests whose [APITokenHeader] does not match token.
// With an empty token every request is rejected.
func RequireAPIToken(token string) Middleware {
	if token == "" {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, tasks.Outcome{Status: tasks.StatusError, Message: "report triggers are disabled: server.api_token is not set"})
			})
		}
	}
	return requireHeader(APITokenHeader, token, "invalid api token")
}

func requireHeader(header, token, message string) Middleware {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(header))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeJSON(w, http.StatusUnauthorized, tasks.Outcome{Status: tasks.StatusError, Message: message})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CountWebhooks records the response status of every webhook request.
func CountWebhooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.RecordWebhook(statusOf(ww))
	})
}

// LogRequests logs one line per request with its status and duration.
func (s *Server) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := statusOf(ww)
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("request", args...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("request", args...)
		default:
			s.logger.Info("request", args...)
		}
	})
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
