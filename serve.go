package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mockflow-core-poc-v1/server/internal/interview/api"
	"github.com/mockflow-core-poc-v1/server/internal/interview/graph"
	"github.com/mockflow-core-poc-v1/server/internal/interview/metrics"
	"github.com/mockflow-core-poc-v1/server/internal/interview/repo"
	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *AppConfig) error {
	catalog, err := stage.Load(cfg.Session.CatalogPath)
	if err != nil {
		return fmt.Errorf("load stage catalog: %w", err)
	}

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return fmt.Errorf("initialise redis client: %w", err)
	}
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis successfully")

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := api.NewHub()
	go hub.Run(hubCtx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)
	transcripts := repo.NewRedisTranscriptRepository(rdb, cfg.Session.TranscriptTTL)

	manager := session.NewManager(session.Options{
		Catalog:        catalog,
		Speaker:        api.NewHubSpeaker(hub),
		Notifier:       api.FanoutNotifier{api.NewHubNotifier(hub), repo.NewRedisNotifier(rdb, "")},
		Transcripts:    transcripts,
		Recorder:       recorder,
		Logger:         log.Logger,
		PollInterval:   cfg.Session.PollInterval,
		SpeakTimeout:   cfg.Session.SpeakTimeout,
		EndedRetention: cfg.Session.EndedRetention,
	}, cfg.Session.MaxConcurrent)

	var runner graph.Runner
	if cfg.APIKey == "" {
		logx.Warn().Msg("GEMINI_API_KEY is not set; the interviewer turn endpoint is disabled")
	} else {
		runner, err = graph.BuildInterviewerGraph(ctx, graph.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Interviewer:  cfg.Interviewer,
			HistoryTurns: cfg.Session.HistoryTurns,
			ToolMaxCalls: cfg.Session.ToolMaxCalls,
			Transcripts:  transcripts,
			Observer:     recorder,
		})
		if err != nil {
			return fmt.Errorf("build interviewer graph: %w", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logx.Debug()
			if v.Error != nil {
				ev = logx.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	api.NewHandler(api.Options{
		Manager:     manager,
		Hub:         hub,
		Runner:      runner,
		Transcripts: transcripts,
		Gatherer:    reg,
		HTTP:        cfg.HTTP,
		Version:     Version,
	}).RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", cfg.HTTP.Addr).Int("stages", len(catalog.Stages)).Msg("Interview API listening")
		if err := e.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logx.Info().Msg("Shutting down interview API...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logx.Warn().Err(err).Msg("Failed to shutdown HTTP server gracefully")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logx.Warn().Err(err).Msg("Sessions did not stop before the shutdown deadline")
	}

	logx.Info().Msg("Interview API stopped")
	return nil
}
