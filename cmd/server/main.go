package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/connect4-backend/internal/config"
	"github.com/DoyleJ11/connect4-backend/internal/logging"
)

var (
	configFile string
	addr       string
	logLevel   string
	limit      int

	rootCmd = &cobra.Command{
		Use:          "connect4",
		Short:        "Real-time Connect Four server.",
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket game server (default).",
		RunE:  runServe,
	}

	standingsCmd = &cobra.Command{
		Use:   "standings",
		Short: "Print the win standings from the configured store.",
		RunE:  runStandings,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML/JSON config file")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address, overrides ADDR")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	standingsCmd.Flags().IntVar(&limit, "limit", 10, "number of rows to print")

	rootCmd.AddCommand(serveCmd, standingsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Dev())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
