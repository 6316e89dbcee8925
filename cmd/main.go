package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/scsync/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp(runner).Run(ctx, os.Args)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted")
		os.Exit(130)
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("not implemented")
	default:
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:     "scsync",
		Usage:    "Sync and download SoundCloud favorites",
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Before:   runner.Before,
		Commands: runner.register(),
	}
}
