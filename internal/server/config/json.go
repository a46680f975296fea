package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/doorkeeper/internal/flagx"
	"github.com/dmitrijs2005/doorkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Durations use timex.Duration, which accepts both strings such as "1h" and
// integer nanoseconds. Pointer fields distinguish "absent" from a zero value.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	QRTokenTTL                   timex.Duration `json:"qr_token_ttl"`
	DefaultEventSlug             string         `json:"default_event_slug"`
	DefaultEventCacheTTL         timex.Duration `json:"default_event_cache_ttl"`
	RateLimitMaxAttempts         *int           `json:"rate_limit_max_attempts"`
	RateLimitWindow              timex.Duration `json:"rate_limit_window"`
	RedisURL                     string         `json:"redis_url"`
	TrustProxyHeaders            *bool          `json:"trust_proxy_headers"`
	RabbitURL                    string         `json:"rabbit_url"`
	RabbitExchange               string         `json:"rabbit_exchange"`
	OTLPEndpoint                 string         `json:"otlp_endpoint"`
	BulkBatchSize                *int           `json:"bulk_batch_size"`
	BulkBatchPause               timex.Duration `json:"bulk_batch_pause"`
	BulkErrorSample              *int           `json:"bulk_error_sample"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	QRImagesEnabled              *bool          `json:"qr_images_enabled"`
}

// parseJson loads configuration values from the JSON file named by -c or
// -config into config. Only keys present in the file override; if the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.QRTokenTTL, c.QRTokenTTL)
	setString(&config.DefaultEventSlug, c.DefaultEventSlug)
	setDuration(&config.DefaultEventCacheTTL, c.DefaultEventCacheTTL)
	set(&config.RateLimitMaxAttempts, c.RateLimitMaxAttempts)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setString(&config.RedisURL, c.RedisURL)
	set(&config.TrustProxyHeaders, c.TrustProxyHeaders)
	setString(&config.RabbitURL, c.RabbitURL)
	setString(&config.RabbitExchange, c.RabbitExchange)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)
	set(&config.BulkBatchSize, c.BulkBatchSize)
	setDuration(&config.BulkBatchPause, c.BulkBatchPause)
	set(&config.BulkErrorSample, c.BulkErrorSample)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.QRImagesEnabled, c.QRImagesEnabled)
}
