package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/desertthunder/callsync/internal/shared"
	"github.com/desertthunder/callsync/internal/tasks"
)

// NewSupervisor creates the root supervisor of the serve command. Service
// failures and restarts are logged through logger.
func NewSupervisor(logger *slog.Logger) *suture.Supervisor {
	handler := &sutureslog.Handler{Logger: logger}
	return suture.New("callsync", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}

// HTTPServer matches the lifecycle methods of [http.Server].
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an [HTTPServer] as a suture service.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server. Shutdown waits up to shutdownTimeout for open connections.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements [suture.Service].
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// Sweeper runs one scheduled fetch of every endpoint over a window.
type Sweeper interface {
	Sweep(ctx context.Context, w shared.Window) ([]tasks.SweepResult, error)
}

// SchedulerService sweeps every interval over the lookback window ending now.
// Sweeps never overlap.
type SchedulerService struct {
	sweeper  Sweeper
	interval time.Duration
	lookback time.Duration
	now      func() time.Time
	logger   *log.Logger
}

// NewSchedulerService creates a scheduler. interval must be positive.
func NewSchedulerService(sweeper Sweeper, interval, lookback time.Duration, logger *log.Logger) *SchedulerService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &SchedulerService{
		sweeper:  sweeper,
		interval: interval,
		lookback: lookback,
		now:      time.Now,
		logger:   shared.WithLogger(logger, "service", "scheduler"),
	}
}

// Serve implements [suture.Service]. The first sweep runs after one interval.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("%w: schedule interval must be positive", shared.ErrInvalidConfig)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and logs its failures.
func (s *SchedulerService) RunOnce(ctx context.Context) []tasks.SweepResult {
	w := shared.WindowEndingAt(s.now(), s.lookback)
	start := time.Now()

	results, err := s.sweeper.Sweep(ctx, w)
	if err != nil {
		s.logger.Error("sweep aborted", "error", err, "completed", len(results))
		return results
	}

	failed := 0
	for _, r := range results {
		if !r.Outcome.OK() {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Warn("sweep finished with failures", "failed", failed, "total", len(results), "detail", tasks.Summarize(results))
	} else {
		s.logger.Info("sweep complete", "total", len(results), "duration", time.Since(start))
	}
	return results
}

func (s *SchedulerService) String() string { return "scheduler" }
