package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the updaterd daemon configuration.
type Config struct {
	RouterID          string       `toml:"router_id"`
	ListenAddr        string       `toml:"listen_addr"`
	CorsOrigins       []string     `toml:"cors_origins"`
	WorkerStopTimeout string       `toml:"worker_stop_timeout"`
	QueueStopTimeout  string       `toml:"queue_stop_timeout"`
	Feeds             []FeedConfig `toml:"feeds"`
}

// FeedConfig declares one polled realtime feed.
type FeedConfig struct {
	ID           string         `toml:"id"`
	PollInterval string         `toml:"poll_interval"`
	Trips        []string       `toml:"trips"`
	Agencies     []AgencyConfig `toml:"agencies"`
}

type AgencyConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	URL      string `toml:"url"`
	Timezone string `toml:"timezone"`
}

func Load(path string) (Config, error) {
	var cfg Config
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.RouterID == "" {
		cfg.RouterID = "default"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.RouterID) == "" {
		return fmt.Errorf("config missing router_id")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("config missing listen_addr")
	}
	if err := validateDuration("worker_stop_timeout", cfg.WorkerStopTimeout); err != nil {
		return err
	}
	if err := validateDuration("queue_stop_timeout", cfg.QueueStopTimeout); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for i, feed := range cfg.Feeds {
		if strings.TrimSpace(feed.ID) == "" {
			return fmt.Errorf("feeds[%d] missing id", i)
		}
		if seen[feed.ID] {
			return fmt.Errorf("feeds[%d] duplicate id %q", i, feed.ID)
		}
		seen[feed.ID] = true
		if err := validateDuration(fmt.Sprintf("feeds[%d].poll_interval", i), feed.PollInterval); err != nil {
			return err
		}
	}
	return nil
}

func validateDuration(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, raw)
	}
	return nil
}
