package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the check-in server
//	-i int      online check interval in seconds
//	-f string   local database file
//	-n string   device id
//	-t int      outbox sync request timeout in seconds
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-f", "-n", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "local database file")
	fs.StringVar(&cfg.DeviceID, "n", cfg.DeviceID, "device id")
	syncTimeout := fs.Int("t", int(cfg.SyncTimeout.Seconds()), "sync request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.SyncTimeout = time.Duration(*syncTimeout) * time.Second
}
