package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/runner"
)

// Options holds dependency + configuration overrides passed to NewHandler().
type Options struct {
	// MetricsHandler serves GET /metrics. Defaults to the promhttp handler
	// for the default registry.
	MetricsHandler http.Handler
	// Logger receives request handling events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Handler translates HTTP requests into Runner operations.
type Handler struct {
	*core.LoggerAdapter

	runner  *runner.Runner
	queue   core.Queue
	metrics http.Handler
}

// NewHandler creates a Handler. The queue is only used by the health
// endpoint's ping.
func NewHandler(r *runner.Runner, q core.Queue, optFns ...func(o *Options)) *Handler {
	opts := Options{
		MetricsHandler: promhttp.Handler(),
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Handler{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		runner:        r,
		queue:         q,
		metrics:       opts.MetricsHandler,
	}
}

// RegisterRoutes registers all AgentGate routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/agent/run", h.RunAgent)
	e.GET("/api/agent/ws", h.RunAgentWS)
	e.POST("/api/agent/tools/whitelist", h.UpdateWhitelists)
	e.POST("/api/tools/resync", h.ResyncTools)

	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(h.metrics))
}

// Health reports service liveness and the change queue's reachability.
func (h *Handler) Health(c echo.Context) error {
	queueStatus := "up"
	if err := h.queue.Ping(c.Request().Context()); err != nil {
		queueStatus = "down"
		h.LogWarn("api.health.queue_unreachable", "error", err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "OK",
		"queue":   queueStatus,
		"message": "Yeah yeah yeah I'm fine stop checking if I'm fine",
	})
}

// errorBody is the JSON shape of every non-streaming error response.
func errorBody(detail string) map[string]string {
	return map[string]string{"detail": detail}
}
