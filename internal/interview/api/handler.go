// Package api exposes interview sessions over HTTP and a per-session websocket sideband.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errx "github.com/mockflow-core-poc-v1/server/internal/core/error"
	"github.com/mockflow-core-poc-v1/server/internal/interview/graph"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
)

// Options carries the handler's collaborators. Runner and Transcripts may be nil.
type Options struct {
	Manager     *session.Manager
	Hub         *Hub
	Runner      graph.Runner
	Transcripts model.TranscriptRepository
	Gatherer    prometheus.Gatherer
	HTTP        model.HTTPConfig
	Version     string
}

// Handler handles HTTP and websocket requests.
type Handler struct {
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(opts Options) *Handler {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.HTTP.WSPingInterval <= 0 {
		opts.HTTP.WSPingInterval = 30 * time.Second
	}
	if opts.HTTP.WSWriteTimeout <= 0 {
		opts.HTTP.WSWriteTimeout = 10 * time.Second
	}
	if opts.HTTP.WSReadTimeout <= 0 {
		opts.HTTP.WSReadTimeout = 60 * time.Second
	}
	if opts.HTTP.WSMaxMessage <= 0 {
		opts.HTTP.WSMaxMessage = 64 << 10
	}
	return &Handler{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// observers are dashboards on other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	v1 := e.Group("/v1/sessions")
	v1.POST("", h.CreateSession)
	v1.GET("/:id", h.GetSession)
	v1.DELETE("/:id", h.EndSession)
	v1.POST("/:id/transition", h.Transition)
	v1.POST("/:id/interactions", h.RecordInteraction)
	v1.POST("/:id/skip", h.Skip)
	v1.POST("/:id/turns", h.Turn)
	v1.GET("/:id/transcript", h.Transcript)
	v1.GET("/:id/ws", h.HandleWebSocket)

	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{})))
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "healthy",
		"version":         h.opts.Version,
		"active_sessions": h.opts.Manager.Len(),
		"ended_sessions":  h.opts.Manager.EndedLen(),
		"connections":     h.opts.Hub.ConnectionCount(),
		"interviewer":     h.opts.Runner != nil,
	})
}

// fail renders err with the status its domain type maps to.
func fail(c echo.Context, err error) error {
	var app *errx.AppError
	if !errors.As(errx.WrapStage(err), &app) {
		app = errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
	}
	status, message := app.Status, app.Message
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logx.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.JSON(status, map[string]string{
		"error":  message,
		"reason": session.RejectionReason(err),
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}
