package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the scanner CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the check-in gRPC endpoint.
//   - OnlineCheckInterval: how often the scanner probes server reachability.
//   - DatabasePath: local SQLite file with the guest list cache and outbox.
//   - DeviceID: identifies this scanner in check-in audit records.
//   - SyncTimeout: per-request deadline while draining the outbox.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DatabasePath        string
	DeviceID            string
	SyncTimeout         time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "scanner.db"
	c.DeviceID = defaultDeviceID()
	c.SyncTimeout = 10 * time.Second
}

func defaultDeviceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "scanner"
	}
	return "scanner-" + host
}

// LoadConfig constructs a Config, applies defaults, then overlays the
// environment, JSON (if present) and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
