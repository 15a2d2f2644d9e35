package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store.ID != "1001" {
		t.Errorf("store.id = %q", cfg.Store.ID)
	}
	if len(cfg.Serial.Ports) != 2 || cfg.Serial.Ports[0] != "COM3" {
		t.Errorf("serial.ports = %v", cfg.Serial.Ports)
	}
	if cfg.Serial.BaudRate != 9600 || !cfg.Serial.RTSCTS {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.Serial.ReconnectBackoff != 5*time.Second {
		t.Errorf("reconnect_backoff = %v", cfg.Serial.ReconnectBackoff)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("api.timeout = %v", cfg.API.Timeout)
	}
	if cfg.API.ClientID != "" || cfg.API.ClientSecret != "" {
		t.Error("credentials must not have defaults")
	}
	if cfg.Clock.Timezone != "America/New_York" || cfg.Clock.MinYear != 2023 {
		t.Errorf("clock = %+v", cfg.Clock)
	}
	if cfg.Pipeline.RecordBuffer != 256 || cfg.Pipeline.TransactionBuffer != 64 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Audit.CSVReport != "360iQDataAPI-AcceptanceReport.csv" {
		t.Errorf("csv_report = %q", cfg.Audit.CSVReport)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BRIDGE_STORE_ID", "2002")
	t.Setenv("BRIDGE_API_CLIENT_SECRET", "hunter2")
	t.Setenv("BRIDGE_CLOCK_TIMEZONE", "America/Chicago")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.ID != "2002" {
		t.Errorf("store.id = %q, want env override", cfg.Store.ID)
	}
	// Only the first underscore splits section from key.
	if cfg.API.ClientSecret != "hunter2" {
		t.Errorf("api.client_secret = %q", cfg.API.ClientSecret)
	}
	if cfg.Clock.Timezone != "America/Chicago" {
		t.Errorf("clock.timezone = %q", cfg.Clock.Timezone)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	yaml := `
store:
  id: "3003"
serial:
  ports: ["COM7"]
  baud_rate: 115200
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.ID != "3003" {
		t.Errorf("store.id = %q", cfg.Store.ID)
	}
	if len(cfg.Serial.Ports) != 1 || cfg.Serial.Ports[0] != "COM7" {
		t.Errorf("serial.ports = %v", cfg.Serial.Ports)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("baud_rate = %d", cfg.Serial.BaudRate)
	}
	// Untouched keys keep their defaults.
	if cfg.Clock.MinYear != 2023 {
		t.Errorf("clock.min_year = %d", cfg.Clock.MinYear)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte("store:\n  id: \"3003\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BRIDGE_STORE_ID", "4004")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.ID != "4004" {
		t.Errorf("store.id = %q, want env to win", cfg.Store.ID)
	}
}

func TestLoadMissingFileIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("Load with missing file: %v", err)
	}
}
