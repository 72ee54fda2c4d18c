package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "updaterd":
		return updaterdTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const updaterdTemplate = `router_id = "default"
listen_addr = ":8080"
cors_origins = ["http://localhost:3000"]
worker_stop_timeout = "30s"
queue_stop_timeout = "30s"

[[feeds]]
id = "feed.demo"
poll_interval = "5s"
trips = ["trip.1", "trip.2"]

[[feeds.agencies]]
id = "agency.demo"
name = "Demo Transit"
url = "https://example.org"
timezone = "Europe/Amsterdam"
`
