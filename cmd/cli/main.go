package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/glucolink/internal/buildinfo"
	"github.com/dmitrijs2005/glucolink/internal/cli"
	"github.com/dmitrijs2005/glucolink/internal/config"
	"github.com/dmitrijs2005/glucolink/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	// Warnings and errors only, so log output does not interleave with the REPL.
	logger := logging.NewTextLogger(os.Stderr, slog.LevelWarn)

	app := cli.NewApp(cfg, logger)
	app.Run(ctx)
}
