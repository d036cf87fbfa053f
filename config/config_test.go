package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fiveradio/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Player.StallTimeout != 5*time.Second {
		t.Errorf("expected 5s default stall timeout, got %v", cfg.Player.StallTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
catalog:
  endpoint: http://localhost:9000/stations.json
player:
  volume: 0.4
  muted: true
  attach_timeout: 5s
  stall_timeout: 2s
server:
  port: 9090
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Catalog.Endpoint != "http://localhost:9000/stations.json" {
		t.Errorf("endpoint = %q", cfg.Catalog.Endpoint)
	}
	if cfg.Catalog.Timeout != 10*time.Second {
		t.Errorf("expected default catalog timeout, got %v", cfg.Catalog.Timeout)
	}
	if cfg.Player.Volume != 0.4 || !cfg.Player.Muted {
		t.Errorf("player = %+v", cfg.Player)
	}
	if cfg.Player.AttachTimeout != 5*time.Second {
		t.Errorf("attach timeout = %v", cfg.Player.AttachTimeout)
	}
	if cfg.Player.StallTimeout != 2*time.Second {
		t.Errorf("stall timeout = %v", cfg.Player.StallTimeout)
	}
	if cfg.Player.SpectrumBands != 20 {
		t.Errorf("expected default bands, got %d", cfg.Player.SpectrumBands)
	}
	if cfg.Server.Port != 9090 || cfg.Log.Level != "debug" {
		t.Errorf("server/log = %+v %+v", cfg.Server, cfg.Log)
	}
}

func TestLoad_Sanitizes(t *testing.T) {
	path := writeConfig(t, `
catalog:
  endpoint: ""
player:
  volume: 1.5
  stall_timeout: -1s
  spectrum_bands: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Player.Volume != 1 {
		t.Errorf("expected volume clamped to 1, got %v", cfg.Player.Volume)
	}
	if cfg.Player.SpectrumBands != 20 {
		t.Errorf("expected bands reset to default, got %d", cfg.Player.SpectrumBands)
	}
	if cfg.Catalog.Endpoint != model.DefaultEndpoint {
		t.Errorf("expected default endpoint, got %q", cfg.Catalog.Endpoint)
	}
	if cfg.Player.StallTimeout != 0 {
		t.Errorf("expected negative stall timeout to disable the check, got %v", cfg.Player.StallTimeout)
	}

	path = writeConfig(t, "player:\n  volume: -0.2\n")
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Player.Volume != 0 {
		t.Errorf("expected volume clamped to 0, got %v", cfg.Player.Volume)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "player: [unterminated\n")

	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults on error, got %+v", cfg)
	}
}

func TestLogPath(t *testing.T) {
	cfg := DefaultConfig()
	if filepath.Base(cfg.LogPath()) != "fiveradio.log" {
		t.Errorf("unexpected default log path %q", cfg.LogPath())
	}
	cfg.Log.File = "/tmp/radio.log"
	if cfg.LogPath() != "/tmp/radio.log" {
		t.Errorf("expected configured log path, got %q", cfg.LogPath())
	}
}
