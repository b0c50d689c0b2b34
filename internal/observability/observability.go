package observability

import (
	"net/http"
	"time"

	"github.com/devpi/devpi-lockdown/internal/config"
	"github.com/devpi/devpi-lockdown/internal/contextutil"
	"github.com/devpi/devpi-lockdown/internal/httputils"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/observability/metrics"
)

// Provider provides observability capabilities
type Provider struct {
	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// NewProvider creates a new observability provider
func NewProvider(cfg *config.Config) (*Provider, error) {
	logger, err := logging.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Logger:  logger,
		Metrics: metrics.NewCollector(),
	}, nil
}

// Middleware creates an HTTP middleware for request observation
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ctx := contextutil.EnrichContext(r.Context(), p.Logger)
		logger := logging.LoggerFromContext(ctx)

		wrapper := httputils.NewResponseWriter(w)
		wrapper.Header().Set("X-Trace-ID", logging.TraceIDFromContext(ctx))

		logger.Debug("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		duration := time.Since(startTime)
		p.Metrics.RecordRequest(r.Method, r.URL.Path, wrapper.StatusCode, duration)

		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.StatusCode,
			"duration_ms", duration.Milliseconds(),
			"bytes_written", wrapper.BytesWritten,
		)
	})
}

// MetricsHandler returns an HTTP handler for exposing metrics
func (p *Provider) MetricsHandler() http.Handler {
	return metrics.Handler()
}
