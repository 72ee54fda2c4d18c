package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plannerstack/graphupdater/internal/api"
	"github.com/plannerstack/graphupdater/internal/graph"
	"github.com/plannerstack/graphupdater/internal/logging"
	"github.com/plannerstack/graphupdater/internal/observability"
	"github.com/plannerstack/graphupdater/internal/updater"
	"github.com/plannerstack/graphupdater/internal/updater/feed"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to updaterd config")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.RegisterMetrics()

	cfg, err := loadDaemonConfig(*configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", *configPath).Msg("no config file, using defaults")
			cfg = defaultDaemonConfig()
		} else {
			log.Fatal().Err(err).Msg("config load failed")
		}
	}

	logger := observability.InitLogger("updaterd", cfg.RouterID)
	g := graph.New(cfg.RouterID)
	mgr := updater.NewManager(g, updater.Config{
		WorkerStopTimeout: cfg.WorkerStopTimeout,
		QueueStopTimeout:  cfg.QueueStopTimeout,
	}, logger)

	for _, spec := range cfg.Feeds {
		source := &feed.StaticSource{FeedID: spec.ID, Trips: spec.Trips}
		poller, err := feed.NewPoller(mgr, source, feed.PollerConfig{
			FeedID:   spec.ID,
			Interval: spec.Interval,
			Agencies: spec.Agencies,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("feed", spec.ID).Msg("feed configuration invalid")
		}
		id, err := mgr.Register(poller)
		if err != nil {
			logger.Fatal().Err(err).Str("feed", spec.ID).Msg("feed registration failed")
		}
		logger.Info().Int("updater_id", id).Str("feed", spec.ID).Msg("feed registered")
	}

	srv := api.NewServer(mgr, api.ServerConfig{
		Addr:        cfg.ListenAddr,
		CorsOrigins: cfg.CorsOrigins,
	}, logger)
	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error().Err(err).Msg("status api failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("status api shutdown failed")
	}
	mgr.Stop()
	logger.Info().Msg("shutdown complete")
}
