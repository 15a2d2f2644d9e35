package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full bridge configuration. Values come from defaults, an
// optional YAML file, and environment variables with a BRIDGE_ prefix
// (BRIDGE_API_CLIENT_SECRET -> api.client_secret), in that order.
type Config struct {
	Store    StoreConfig    `koanf:"store"`
	Serial   SerialConfig   `koanf:"serial"`
	API      APIConfig      `koanf:"api"`
	Clock    ClockConfig    `koanf:"clock"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Audit    AuditConfig    `koanf:"audit"`
	Server   ServerConfig   `koanf:"server"`
}

type StoreConfig struct {
	// ID is stamped onto every transaction regardless of source; the
	// ingestion environment accepts a single registered store.
	ID string `koanf:"id"`
}

type SerialConfig struct {
	Ports            []string      `koanf:"ports"`
	BaudRate         int           `koanf:"baud_rate"`
	RTSCTS           bool          `koanf:"rtscts"`
	ReconnectBackoff time.Duration `koanf:"reconnect_backoff"`
}

type APIConfig struct {
	IdentityURL    string        `koanf:"identity_url"`
	ClientID       string        `koanf:"client_id"`
	ClientSecret   string        `koanf:"client_secret"`
	CashURL        string        `koanf:"cash_url"`
	TransactionURL string        `koanf:"transaction_url"`
	RefundURL      string        `koanf:"refund_url"`
	Timeout        time.Duration `koanf:"timeout"`
}

type ClockConfig struct {
	// Timezone is the named zone POS clocks report local time in.
	Timezone string `koanf:"timezone"`
	// MinYear guards against stale device clocks: timestamps dated before
	// this year are replaced with the current UTC instant.
	MinYear int `koanf:"min_year"`
}

type PipelineConfig struct {
	// Channel capacities. Producers block when a buffer is full.
	RecordBuffer      int `koanf:"record_buffer"`
	TransactionBuffer int `koanf:"transaction_buffer"`
}

type AuditConfig struct {
	LogDir          string `koanf:"log_dir"`
	EventsDir       string `koanf:"events_dir"`
	TransactionsDir string `koanf:"transactions_dir"`
	CSVReport       string `koanf:"csv_report"`
	SQLitePath      string `koanf:"sqlite_path"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// Load reads configuration from the given YAML path (ignored if empty or
// missing) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"store.id":                    "1001",
		"serial.ports":                []string{"COM3", "COM4"},
		"serial.baud_rate":            9600,
		"serial.rtscts":               true,
		"serial.reconnect_backoff":    "5s",
		"api.identity_url":            "https://identity-qa.go360iq.com/connect/token",
		"api.cash_url":                "https://data-api-uat.go360iq.com/v1/CashOperations",
		"api.transaction_url":         "https://data-api-uat.go360iq.com/v1/Transactions",
		"api.refund_url":              "https://data-api-uat.go360iq.com/v1/Refunds",
		"api.timeout":                 "10s",
		"clock.timezone":              "America/New_York",
		"clock.min_year":              2023,
		"pipeline.record_buffer":      256,
		"pipeline.transaction_buffer": 64,
		"audit.log_dir":               "logs",
		"audit.events_dir":            "events",
		"audit.transactions_dir":      "transactions",
		"audit.csv_report":            "360iQDataAPI-AcceptanceReport.csv",
		"audit.sqlite_path":           "data/outcomes.db",
		"server.port":                 8090,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("BRIDGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "BRIDGE_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Store.ID == "" {
		return fmt.Errorf("store.id is required")
	}
	if len(c.Serial.Ports) == 0 {
		return fmt.Errorf("serial.ports must list at least one port")
	}
	if c.Pipeline.RecordBuffer < 1 || c.Pipeline.TransactionBuffer < 1 {
		return fmt.Errorf("pipeline buffer sizes must be positive")
	}
	return nil
}
