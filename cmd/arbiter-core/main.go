// Package main is the entry point for the arbiter-core binary.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/arbiterai/arbiter-oss/internal/app"
	"github.com/arbiterai/arbiter-oss/pkg/config"
	"github.com/arbiterai/arbiter-oss/pkg/logging"
)

const defaultConfigPath = "config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listenAddr := flag.String("listen", "", "Address to listen on (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error; overrides config)")
	prettyLogs := flag.Bool("pretty", false, "Enable pretty console logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// The logger's level comes from the config, so config errors go to stderr.
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.Address = *listenAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *prettyLogs {
		cfg.Logging.Pretty = true
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	logger.Info().Str("config", *configPath).Msg("starting arbiter-core")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize gateway")
	}

	if err := a.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("shutdown complete")
}
