package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plannerstack/graphupdater/internal/testutil/testlog"
)

func TestLoadTemplateRoundTrip(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, "updaterd", false); err != nil {
		t.Fatalf("write template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RouterID != "default" || cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].ID != "feed.demo" {
		t.Fatalf("unexpected feeds: %+v", cfg.Feeds)
	}
	if len(cfg.Feeds[0].Agencies) != 1 || cfg.Feeds[0].Agencies[0].Name != "Demo Transit" {
		t.Fatalf("unexpected agencies: %+v", cfg.Feeds[0].Agencies)
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, "updaterd", false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTemplate(path, "updaterd", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "updaterd", true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	testlog.Start(t)

	if _, err := Template("mystery"); err == nil {
		t.Fatalf("expected unknown-kind error")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "duplicate feed id",
			body: "router_id = \"r\"\nlisten_addr = \":8080\"\n[[feeds]]\nid = \"a\"\n[[feeds]]\nid = \"a\"\n",
			want: "duplicate id",
		},
		{
			name: "missing feed id",
			body: "router_id = \"r\"\nlisten_addr = \":8080\"\n[[feeds]]\npoll_interval = \"5s\"\n",
			want: "missing id",
		},
		{
			name: "bad duration",
			body: "router_id = \"r\"\nlisten_addr = \":8080\"\nworker_stop_timeout = \"soon\"\n",
			want: "worker_stop_timeout",
		},
		{
			name: "negative duration",
			body: "router_id = \"r\"\nlisten_addr = \":8080\"\nqueue_stop_timeout = \"-5s\"\n",
			want: "must be positive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected load failure for missing file")
	}
}
