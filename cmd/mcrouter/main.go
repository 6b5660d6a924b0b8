package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/firewood/mcrouter/internal/config"
	"github.com/firewood/mcrouter/internal/logging"
	"github.com/firewood/mcrouter/internal/server"
	"github.com/firewood/mcrouter/internal/stats"
)

func main() {
	configPath := flag.String("config", "configs/mcrouter.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(server.PackageString)
		os.Exit(0)
	}

	if *validateOnly {
		if _, err := config.NewLoader().Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	tracker, err := config.NewTracker(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := tracker.Current().Config()

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	stats.SetStandaloneArgs(strings.Join(os.Args, " "))

	if err := tracker.Watch(); err != nil {
		logging.Warn("config watch disabled", zap.Error(err))
	}
	defer tracker.Stop()

	logging.Info("starting mcrouter",
		zap.String("version", server.PackageString),
		zap.String("config", *configPath),
		zap.Int("shards", cfg.NumProxies),
		zap.Int("destinations", len(cfg.Route.Destinations)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(tracker, nil)
	if err := srv.Run(ctx); err != nil {
		logging.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logging.Info("shutdown complete")
}
