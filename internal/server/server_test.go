package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
	"github.com/desertthunder/callsync/internal/tasks"
)

type fakeEngine struct {
	mu       sync.Mutex
	payloads [][]byte
	company  string
	endpoint services.Endpoint
	req      tasks.FetchRequest
	outcome  tasks.Outcome
	summary  []byte
}

func (f *fakeEngine) FetchReport(ctx context.Context, endpoint services.Endpoint, req tasks.FetchRequest) tasks.Outcome {
	f.endpoint, f.req = endpoint, req
	return f.outcome
}

func (f *fakeEngine) Summary(ctx context.Context, req tasks.FetchRequest) ([]byte, tasks.Outcome) {
	f.req = req
	return f.summary, f.outcome
}

func (f *fakeEngine) IngestPayload(ctx context.Context, raw []byte, company string) tasks.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, raw)
	f.company = company
	if len(bytes.TrimSpace(raw)) == 0 {
		return tasks.NewOutcome(shared.ErrInvalidInput)
	}
	return f.outcome
}

func success() tasks.Outcome {
	one, two := 1, 2
	return tasks.Outcome{Status: tasks.StatusSuccess, Created: 3, EmployeesCreated: &one, CallLogsCreated: &two}
}

func newTestServer(t *testing.T, engine Engine, opts Options) http.Handler {
	t.Helper()
	var buf bytes.Buffer
	opts.Logger = shared.NewLogger(&buf)
	return New(engine, opts).Routes()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestWebhook(t *testing.T) {
	const path = "/api/webhooks/call-logs"

	t.Run("Ingests Payload", func(t *testing.T) {
		engine := &fakeEngine{outcome: success()}
		h := newTestServer(t, engine, Options{})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path+"?company=acme", strings.NewReader(`[{"emp_number":"A1"}]`))
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if body["status"] != "success" || body["employees_created"] != float64(1) || body["call_logs_created"] != float64(2) {
			t.Errorf("unexpected body %v", body)
		}
		if engine.company != "acme" || string(engine.payloads[0]) != `[{"emp_number":"A1"}]` {
			t.Errorf("unexpected engine call %q %q", engine.company, engine.payloads)
		}
	})

	t.Run("Rejects Non-POST", func(t *testing.T) {
		engine := &fakeEngine{outcome: success()}
		h := newTestServer(t, engine, Options{})
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s: expected 405, got %d", method, rec.Code)
			}
		}
		if len(engine.payloads) != 0 {
			t.Error("engine must not be called")
		}
	})

	t.Run("Empty Body", func(t *testing.T) {
		h := newTestServer(t, &fakeEngine{outcome: success()}, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if body := decode(t, rec); body["kind"] != string(tasks.KindInputValidation) {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("Token", func(t *testing.T) {
		engine := &fakeEngine{outcome: success()}
		h := newTestServer(t, engine, Options{WebhookToken: "s3cret"})

		tests := []struct {
			name   string
			token  string
			status int
		}{
			{"Missing", "", http.StatusUnauthorized},
			{"Wrong", "guess", http.StatusUnauthorized},
			{"Valid", "s3cret", http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
				if tt.token != "" {
					req.Header.Set(TokenHeader, tt.token)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code != tt.status {
					t.Errorf("expected %d, got %d", tt.status, rec.Code)
				}
			})
		}
		if len(engine.payloads) != 1 {
			t.Errorf("expected only the authorized request to reach the engine, got %d", len(engine.payloads))
		}
	})

	t.Run("Rate Limit", func(t *testing.T) {
		h := newTestServer(t, &fakeEngine{outcome: success()}, Options{RateLimit: 2, RateWindow: time.Minute})

		codes := make([]int, 3)
		for i := range codes {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
			req.RemoteAddr = "10.0.0.1:1234"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}
		if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
			t.Errorf("unexpected status codes %v", codes)
		}
	})

	t.Run("Body Too Large", func(t *testing.T) {
		h := newTestServer(t, &fakeEngine{outcome: success()}, Options{})
		big := bytes.Repeat([]byte("a"), maxBodyBytes+1)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(big)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

const testAPIToken = "api-s3cret"

func authorized(req *http.Request) *http.Request {
	req.Header.Set(APITokenHeader, testAPIToken)
	return req
}

func TestReports(t *testing.T) {
	t.Run("Token", func(t *testing.T) {
		tests := []struct {
			name     string
			apiToken string
			sent     string
			status   int
		}{
			{"Missing", testAPIToken, "", http.StatusUnauthorized},
			{"Wrong", testAPIToken, "guess", http.StatusUnauthorized},
			{"Route Closed Without Token", "", "", http.StatusUnauthorized},
			{"Valid", testAPIToken, testAPIToken, http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				engine := &fakeEngine{outcome: tasks.Outcome{Status: tasks.StatusSuccess}}
				h := newTestServer(t, engine, Options{APIToken: tt.apiToken, WebhookToken: "hook"})

				req := httptest.NewRequest(http.MethodPost, "/api/reports/hourly?company=acme", nil)
				req.Header.Set(TokenHeader, "hook")
				if tt.sent != "" {
					req.Header.Set(APITokenHeader, tt.sent)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)

				if rec.Code != tt.status {
					t.Errorf("expected %d, got %d", tt.status, rec.Code)
				}
				reached := engine.endpoint != ""
				if reached != (tt.status == http.StatusOK) {
					t.Errorf("engine reached = %v for status %d", reached, rec.Code)
				}
			})
		}
	})

	t.Run("Form Values", func(t *testing.T) {
		engine := &fakeEngine{outcome: tasks.Outcome{Status: tasks.StatusSuccess, Created: 4}}
		h := newTestServer(t, engine, Options{APIToken: testAPIToken})

		form := "company=acme&start_date=2024-01-01+00%3A00%3A00&end_date=2024-01-02+00%3A00%3A00"
		req := authorized(httptest.NewRequest(http.MethodPost, "/api/reports/unique_clients", strings.NewReader(form)))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if engine.endpoint != services.EndpointUniqueClients {
			t.Errorf("expected unique-clients, got %s", engine.endpoint)
		}
		want := tasks.FetchRequest{Company: "acme", StartDate: "2024-01-01 00:00:00", EndDate: "2024-01-02 00:00:00"}
		if engine.req != want {
			t.Errorf("expected %+v, got %+v", want, engine.req)
		}
		if body := decode(t, rec); body["created"] != float64(4) {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("Query Values", func(t *testing.T) {
		engine := &fakeEngine{outcome: tasks.Outcome{Status: tasks.StatusSuccess}}
		h := newTestServer(t, engine, Options{APIToken: testAPIToken})
		req := authorized(httptest.NewRequest(http.MethodPost, "/api/reports/hourly?company=acme", nil))
		h.ServeHTTP(httptest.NewRecorder(), req)
		if engine.req.Company != "acme" {
			t.Errorf("expected company from query, got %+v", engine.req)
		}
	})

	t.Run("Unknown Kind", func(t *testing.T) {
		h := newTestServer(t, &fakeEngine{}, Options{APIToken: testAPIToken})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodPost, "/api/reports/weekly", nil)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Error Outcomes", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
		}{
			{shared.ErrMissingArgument, http.StatusBadRequest},
			{shared.ErrAPIRequest, http.StatusBadGateway},
			{errors.New("disk full"), http.StatusInternalServerError},
		}
		for _, tt := range tests {
			h := newTestServer(t, &fakeEngine{outcome: tasks.NewOutcome(tt.err)}, Options{APIToken: testAPIToken})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodPost, "/api/reports/daywise", nil)))
			if rec.Code != tt.status {
				t.Errorf("%v: expected %d, got %d", tt.err, tt.status, rec.Code)
			}
			if strings.Contains(rec.Body.String(), "disk full") {
				t.Error("internal error detail leaked to the response")
			}
		}
	})

	t.Run("Summary Passthrough", func(t *testing.T) {
		engine := &fakeEngine{outcome: tasks.Outcome{Status: tasks.StatusSuccess}, summary: []byte(`{"total":7}`)}
		h := newTestServer(t, engine, Options{APIToken: testAPIToken})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodPost, "/api/reports/summary?company=acme", nil)))
		if rec.Code != http.StatusOK || rec.Body.String() != `{"total":7}` {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		h := newTestServer(t, &fakeEngine{}, Options{Ping: func(context.Context) error { return nil }})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Database Down", func(t *testing.T) {
		h := newTestServer(t, &fakeEngine{}, Options{Ping: func(context.Context) error { return errors.New("closed") }})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		h := newTestServer(t, &fakeEngine{}, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
			t.Errorf("expected prometheus output, got %d", rec.Code)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		h := newTestServer(t, &fakeEngine{}, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
