// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
)

// ReportCall records one [MockService.Report] invocation
type ReportCall struct {
	Endpoint services.Endpoint
	Window   shared.Window
	Filter   services.ReportFilter
}

// MockService is a test double for [services.Service]
type MockService struct {
	CompanyName     string
	EmployeeRecords []models.ExternalRecord
	ReportRecords   map[services.Endpoint][]models.ExternalRecord
	SummaryBody     []byte
	Err             error
	// Delay holds each Employees call before it answers.
	Delay time.Duration

	mu          sync.Mutex
	requests    int
	ReportCalls []ReportCall
}

// NewMockService creates a [MockService] for company with no canned records.
func NewMockService(company string) *MockService {
	return &MockService{CompanyName: company, ReportRecords: map[services.Endpoint][]models.ExternalRecord{}}
}

func (m *MockService) Employees(ctx context.Context) ([]models.ExternalRecord, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.EmployeeRecords, nil
}

func (m *MockService) Report(ctx context.Context, endpoint services.Endpoint, window shared.Window, filter services.ReportFilter) ([]models.ExternalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.ReportCalls = append(m.ReportCalls, ReportCall{Endpoint: endpoint, Window: window, Filter: filter})
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ReportRecords[endpoint], nil
}

func (m *MockService) Summary(ctx context.Context, startDate, endDate string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.SummaryBody, nil
}

func (m *MockService) Company() string { return m.CompanyName }

// Requests reports how many upstream operations were invoked.
func (m *MockService) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
