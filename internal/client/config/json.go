package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/flagx"
	"github.com/dmitrijs2005/doorkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	DatabasePath        string         `json:"database_path"`
	DeviceID            string         `json:"device_id"`
	SyncTimeout         timex.Duration `json:"sync_timeout"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Only keys present in the file override. Read and unmarshal
// errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.DeviceID, jc.DeviceID)
	setDuration(&cfg.SyncTimeout, jc.SyncTimeout)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
