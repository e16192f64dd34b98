// package server contains middleware & handlers for the callsync web service
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
	"github.com/desertthunder/callsync/internal/tasks"
)

const maxBodyBytes = 10 << 20

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Engine is the subset of [tasks.Engine] the handlers use.
type Engine interface {
	FetchReport(ctx context.Context, endpoint services.Endpoint, req tasks.FetchRequest) tasks.Outcome
	Summary(ctx context.Context, req tasks.FetchRequest) ([]byte, tasks.Outcome)
	IngestPayload(ctx context.Context, raw []byte, company string) tasks.Outcome
}

// Options configures a [Server].
//
// The report trigger route answers 401 unless APIToken is set.
type Options struct {
	WebhookToken string
	APIToken     string
	RateLimit    int
	RateWindow   time.Duration
	Ping         func(ctx context.Context) error
	Logger       *log.Logger
}

// Server holds the handlers and their dependencies.
type Server struct {
	engine     Engine
	token      string
	apiToken   string
	rateLimit  int
	rateWindow time.Duration
	ping       func(ctx context.Context) error
	logger     *log.Logger
}

// New creates a [Server] for engine.
func New(engine Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	return &Server{
		engine:     engine,
		token:      opts.WebhookToken,
		apiToken:   opts.APIToken,
		rateLimit:  opts.RateLimit,
		rateWindow: opts.RateWindow,
		ping:       opts.Ping,
		logger:     opts.Logger,
	}
}

// NewFromConfig creates a [Server] from the [shared.ServerConfig] section.
func NewFromConfig(engine Engine, cfg shared.ServerConfig, ping func(ctx context.Context) error, logger *log.Logger) *Server {
	return New(engine, Options{
		WebhookToken: cfg.WebhookToken,
		APIToken:     cfg.APIToken,
		RateLimit:    cfg.RateLimit,
		RateWindow:   shared.ParseDurationOr(cfg.RateWindow, time.Minute),
		Ping:         ping,
		Logger:       logger,
	})
}
