package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/plannerstack/graphupdater/internal/graph"
)

type daemonConfig struct {
	RouterID          string
	ListenAddr        string
	CorsOrigins       []string
	WorkerStopTimeout time.Duration
	QueueStopTimeout  time.Duration
	Feeds             []feedSpec
}

type feedSpec struct {
	ID       string
	Interval time.Duration
	Trips    []string
	Agencies []graph.Agency
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		RouterID:          "default",
		ListenAddr:        ":8080",
		WorkerStopTimeout: 30 * time.Second,
		QueueStopTimeout:  30 * time.Second,
	}
}

type fileConfig struct {
	RouterID          string           `toml:"router_id"`
	ListenAddr        string           `toml:"listen_addr"`
	CorsOrigins       []string         `toml:"cors_origins"`
	WorkerStopTimeout string           `toml:"worker_stop_timeout"`
	QueueStopTimeout  string           `toml:"queue_stop_timeout"`
	Feeds             []fileFeedConfig `toml:"feeds"`
}

type fileFeedConfig struct {
	ID           string             `toml:"id"`
	PollInterval string             `toml:"poll_interval"`
	Trips        []string           `toml:"trips"`
	Agencies     []fileAgencyConfig `toml:"agencies"`
}

type fileAgencyConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	URL      string `toml:"url"`
	Timezone string `toml:"timezone"`
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load updaterd config: %w", err)
	}

	if meta.IsDefined("router_id") {
		id := strings.TrimSpace(raw.RouterID)
		if id != "" {
			cfg.RouterID = id
		}
	}

	if meta.IsDefined("listen_addr") {
		addr := strings.TrimSpace(raw.ListenAddr)
		if addr != "" {
			cfg.ListenAddr = addr
		}
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	if meta.IsDefined("worker_stop_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WorkerStopTimeout))
		if err != nil {
			return daemonConfig{}, fmt.Errorf("parse worker_stop_timeout: %w", err)
		}
		cfg.WorkerStopTimeout = d
	}

	if meta.IsDefined("queue_stop_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.QueueStopTimeout))
		if err != nil {
			return daemonConfig{}, fmt.Errorf("parse queue_stop_timeout: %w", err)
		}
		cfg.QueueStopTimeout = d
	}

	for i, f := range raw.Feeds {
		spec, err := normalizeFeed(f)
		if err != nil {
			return daemonConfig{}, fmt.Errorf("feeds[%d]: %w", i, err)
		}
		cfg.Feeds = append(cfg.Feeds, spec)
	}

	return cfg, nil
}

func normalizeFeed(f fileFeedConfig) (feedSpec, error) {
	id := strings.TrimSpace(f.ID)
	if id == "" {
		return feedSpec{}, fmt.Errorf("missing id")
	}

	interval := 5 * time.Second
	if strings.TrimSpace(f.PollInterval) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(f.PollInterval))
		if err != nil {
			return feedSpec{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		interval = d
	}

	spec := feedSpec{ID: id, Interval: interval, Trips: f.Trips}
	for _, a := range f.Agencies {
		spec.Agencies = append(spec.Agencies, graph.Agency{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.URL,
			Timezone: a.Timezone,
		})
	}
	return spec, nil
}
