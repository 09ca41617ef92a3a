package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/mockflow-core-poc-v1/server/internal/core"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
	pkgredis "github.com/mockflow-core-poc-v1/server/pkg/redis"
)

const (
	appName = "mockflow"
	Version = "0.1.0"
)

// AppConfig defines all configurable parameters for the interview service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider; the turn endpoint is disabled without a key
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	Interviewer model.InterviewerModelConfig
	Session     model.SessionConfig
	HTTP        model.HTTPConfig
}

func loadConfig() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})
	return &cfg, nil
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		logx.Fatal().Err(err).Msg("Command failed")
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Mock interview stage orchestration service",
		Long: `MockFlow drives a voice interview through a fixed sequence of stages.

It keeps each session's stage state, forces a transition when a stage runs
out of time, honours candidate skip requests, and relays stage-change
acknowledgements to the interviewer exactly once.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd(), simulateCmd(), catalogCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}
