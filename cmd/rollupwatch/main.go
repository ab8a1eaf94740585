package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/chainbound-labs/rollupwatch/internal/config"
	"github.com/chainbound-labs/rollupwatch/internal/flags"
	"github.com/chainbound-labs/rollupwatch/internal/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
)

func main() {
	app := cli.NewApp()
	app.Name = "rollupwatch"
	app.Usage = "Rollup Commitment Lifecycle Monitor"
	app.Description = "Tracks L1 batch/proof/finalization events and L2 sequencer liveness for multiple rollups, exposing aggregated state over HTTP and WebSocket"
	app.Version = formatVersion()
	app.Flags = flags.Flags
	app.Action = run

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		// non-zero exit on fatal configuration or startup error
		log.Crit("Application failed", "message", err)
	}
}

func run(cliCtx *cli.Context) error {
	logger, err := newLogger(cliCtx.String(flags.LogLevelFlag.Name))
	if err != nil {
		return err
	}
	log.SetDefault(logger)

	cfg := config.NewConfig(cliCtx)
	svc, err := service.FromConfig(cliCtx.Context, Version, cfg, logger)
	if err != nil {
		return err
	}
	if err := svc.Start(cliCtx.Context); err != nil {
		return err
	}

	<-cliCtx.Context.Done()
	logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), service.ShutdownTimeout)
	defer cancel()
	return svc.Stop(stopCtx)
}

func newLogger(level string) (log.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = log.LevelDebug
	case "info":
		lvl = log.LevelInfo
	case "warn":
		lvl = log.LevelWarn
	case "error":
		lvl = log.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stdout, lvl, false)), nil
}

func formatVersion() string {
	if GitCommit != "" {
		return fmt.Sprintf("%s-%s", Version, GitCommit[:8])
	}
	return Version
}
