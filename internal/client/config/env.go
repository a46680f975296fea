package config

import (
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable, e.g. SCANNER_SERVER_ADDR.
const EnvPrefix = "scanner"

type EnvConfig struct {
	ServerEndpointAddr  *string        `envconfig:"SERVER_ADDR"`
	OnlineCheckInterval *time.Duration `envconfig:"CHECK_INTERVAL"`
	DatabasePath        *string        `envconfig:"DB"`
	DeviceID            *string        `envconfig:"DEVICE_ID"`
	SyncTimeout         *time.Duration `envconfig:"SYNC_TIMEOUT"`
}

// parseEnv loads the .env file named by -env/-E (if any) and overlays every
// SCANNER_* variable that is set. Errors panic, like the JSON overlay.
func parseEnv(cfg *Config) {
	if f := flagx.EnvFileFlag(); f != "" {
		if err := godotenv.Load(f); err != nil {
			panic(err)
		}
	}

	var e EnvConfig
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		panic(err)
	}

	set(&cfg.ServerEndpointAddr, e.ServerEndpointAddr)
	set(&cfg.OnlineCheckInterval, e.OnlineCheckInterval)
	set(&cfg.DatabasePath, e.DatabasePath)
	set(&cfg.DeviceID, e.DeviceID)
	set(&cfg.SyncTimeout, e.SyncTimeout)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
