package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
	"github.com/desertthunder/callsync/internal/tasks"
)

// webhook ingests a pushed payload. The optional company query value scopes the batch.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeOutcome(w, tasks.NewOutcome(fmt.Errorf("%w: body exceeds %d bytes", shared.ErrInvalidInput, tooLarge.Limit)))
			return
		}
		s.writeOutcome(w, tasks.NewOutcome(fmt.Errorf("%w: failed to read body: %v", shared.ErrInvalidInput, err)))
		return
	}

	s.writeOutcome(w, s.engine.IngestPayload(r.Context(), body, r.URL.Query().Get("company")))
}

// report triggers a fetch of the report named by the {kind} path value.
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	endpoint, err := services.ParseEndpoint(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeOutcome(w, tasks.NewOutcome(err))
		return
	}

	if err := r.ParseForm(); err != nil {
		s.writeOutcome(w, tasks.NewOutcome(fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)))
		return
	}
	req := tasks.FetchRequest{
		Company:   r.Form.Get("company"),
		StartDate: r.Form.Get("start_date"),
		EndDate:   r.Form.Get("end_date"),
	}

	if endpoint == services.EndpointSummary {
		body, o := s.engine.Summary(r.Context(), req)
		if !o.OK() {
			s.writeOutcome(w, o)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}

	s.writeOutcome(w, s.engine.FetchReport(r.Context(), endpoint, req))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, tasks.Outcome{Status: tasks.StatusError, Message: "method not allowed"})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, tasks.Outcome{Status: tasks.StatusError, Message: "not found"})
}

func (s *Server) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, tasks.Outcome{Status: tasks.StatusError, Message: "rate limit exceeded"})
}

func (s *Server) writeOutcome(w http.ResponseWriter, o tasks.Outcome) {
	writeJSON(w, o.HTTPStatus(), o)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
