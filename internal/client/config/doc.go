// Package config loads runtime configuration for the scanner CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional .env file (-env or -E) and SCANNER_* environment variables.
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the check-in gRPC endpoint
//	-i int      online status check interval (seconds)
//	-f string   path to the local database file
//	-n string   device id reported with each scan
//	-t int      outbox sync request timeout (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_path": "scanner.db",
//	  "device_id": "gate-1",
//	  "sync_timeout": "10s"
//	}
package config
