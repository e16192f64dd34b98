package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/callsync/internal/metrics"
	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/shared"
)

const (
	defaultTimeout  = 30 * time.Second
	bodyExcerptSize = 256
)

// ClientOptions configures a [CallyzerClient]. Zero values select defaults.
type ClientOptions struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
	Logger            *log.Logger
}

// CallyzerClient implements [Service] for one [models.SettingsEntry].
type CallyzerClient struct {
	settings *models.SettingsEntry
	apiKey   *http.Client
	bearer   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	logger   *log.Logger
}

// NewCallyzerClient creates a client for the given settings entry.
func NewCallyzerClient(settings *models.SettingsEntry, opts ClientOptions) (*CallyzerClient, error) {
	if settings == nil {
		return nil, shared.ErrSettingsNotFound
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	if !settings.Active() {
		return nil, fmt.Errorf("%w: %s", shared.ErrSettingsInactive, settings.Name())
	}
	if settings.APIKey() == "" {
		return nil, fmt.Errorf("%w: api_key for %s", shared.ErrMissingCredentials, settings.Name())
	}

	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	base := http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		base = opts.HTTPClient.Transport
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := shared.WithLogger(opts.Logger, "company", settings.Company())
	breakerName := "callyzer:" + settings.Name()

	c := &CallyzerClient{
		settings: settings,
		apiKey:   &http.Client{Transport: base, Timeout: opts.Timeout},
		bearer: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: settings.APIKey(), TokenType: "Bearer"}),
				Base:   base,
			},
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    breakerName,
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.SetCircuitBreakerState(name, int(to))
		},
	})
	metrics.SetCircuitBreakerState(breakerName, int(gobreaker.StateClosed))

	return c, nil
}

func (c *CallyzerClient) Company() string {
	return c.settings.Company()
}

// Employees retrieves the employee list with the spi-key headers.
func (c *CallyzerClient) Employees(ctx context.Context) ([]models.ExternalRecord, error) {
	body, err := c.doRequest(ctx, EndpointEmployees, nil)
	if err != nil {
		return nil, err
	}
	return decodeResult(body)
}

// Report requests one of the bearer-authenticated call-log reports.
func (c *CallyzerClient) Report(ctx context.Context, endpoint Endpoint, window shared.Window, filter ReportFilter) ([]models.ExternalRecord, error) {
	if endpoint.Auth() != AuthBearer {
		return nil, fmt.Errorf("%w: %s is not a report endpoint", shared.ErrInvalidArgument, endpoint)
	}

	body, err := c.doRequest(ctx, endpoint, NewReportRequest(window, filter))
	if err != nil {
		return nil, err
	}
	return decodeResult(body)
}

// Summary requests the summary report. The body is returned as received.
func (c *CallyzerClient) Summary(ctx context.Context, startDate, endDate string) ([]byte, error) {
	return c.doRequest(ctx, EndpointSummary, SummaryRequest{
		StartDate: startDate,
		EndDate:   endDate,
		Company:   c.settings.Company(),
	})
}

// doRequest performs one rate limited, circuit-broken request and returns the response body.
func (c *CallyzerClient) doRequest(ctx context.Context, endpoint Endpoint, body any) ([]byte, error) {
	def, ok := catalog[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: unknown endpoint %q", shared.ErrInvalidArgument, endpoint)
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = b
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	url := endpoint.URL(c.settings)
	resp, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, endpoint, def, url, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("upstream circuit open", "endpoint", endpoint)
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, shared.ErrServiceUnavailable)
	}
	return resp, err
}

func (c *CallyzerClient) send(ctx context.Context, endpoint Endpoint, def endpointDef, url string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, def.method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.bearer
	if def.auth == AuthAPIKey {
		client = c.apiKey
		req.Header.Set("spi-key", c.settings.APIKey())
		req.Header.Set("company", c.settings.Company())
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(endpoint.String(), 0, time.Since(start))
		c.logger.Error("upstream request failed", "endpoint", endpoint, "url", url, "error", err)
		return nil, fmt.Errorf("%w: request failed: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordUpstreamRequest(endpoint.String(), resp.StatusCode, time.Since(start))
	if err != nil {
		c.logger.Error("failed to read upstream response", "endpoint", endpoint, "status", resp.StatusCode, "error", err)
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("upstream returned an error status",
			"endpoint", endpoint, "status", resp.StatusCode, "body", excerpt(body))
		return nil, fmt.Errorf("%w: %s returned status %d", shared.ErrAPIRequest, endpoint, resp.StatusCode)
	}

	c.logger.Debug("upstream request complete", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

type resultEnvelope struct {
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// decodeResult extracts the "result" array of a response. Numbers are kept as [json.Number].
func decodeResult(body []byte) ([]models.ExternalRecord, error) {
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", shared.ErrAPIRequest, shared.ErrUnexpectedResponse, err)
	}

	raw := bytes.TrimSpace(env.Result)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: %w: missing result array", shared.ErrAPIRequest, shared.ErrUnexpectedResponse)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var records []models.ExternalRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", shared.ErrAPIRequest, shared.ErrUnexpectedResponse, err)
	}
	return records, nil
}

func excerpt(body []byte) string {
	if len(body) > bodyExcerptSize {
		return string(body[:bodyExcerptSize]) + "..."
	}
	return string(body)
}
