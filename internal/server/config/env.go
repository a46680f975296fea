package config

import (
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable, e.g. DOORKEEPER_GRPC_ADDR.
const EnvPrefix = "doorkeeper"

// EnvConfig mirrors Config for envconfig. Pointer fields stay nil when the
// variable is unset, so only variables that are present override.
type EnvConfig struct {
	EndpointAddrGRPC             *string        `envconfig:"GRPC_ADDR"`
	EndpointAddrHTTP             *string        `envconfig:"HTTP_ADDR"`
	DatabaseDSN                  *string        `envconfig:"DATABASE_DSN"`
	SecretKey                    *string        `envconfig:"SECRET_KEY"`
	AccessTokenValidityDuration  *time.Duration `envconfig:"ACCESS_TOKEN_TTL"`
	RefreshTokenValidityDuration *time.Duration `envconfig:"REFRESH_TOKEN_TTL"`
	QRTokenTTL                   *time.Duration `envconfig:"QR_TOKEN_TTL"`
	DefaultEventSlug             *string        `envconfig:"DEFAULT_EVENT_SLUG"`
	DefaultEventCacheTTL         *time.Duration `envconfig:"DEFAULT_EVENT_CACHE_TTL"`
	RateLimitMaxAttempts         *int           `envconfig:"RATE_LIMIT_MAX"`
	RateLimitWindow              *time.Duration `envconfig:"RATE_LIMIT_WINDOW"`
	RedisURL                     *string        `envconfig:"REDIS_URL"`
	TrustProxyHeaders            *bool          `envconfig:"TRUST_PROXY"`
	RabbitURL                    *string        `envconfig:"RABBIT_URL"`
	RabbitExchange               *string        `envconfig:"RABBIT_EXCHANGE"`
	OTLPEndpoint                 *string        `envconfig:"OTLP_ENDPOINT"`
	BulkBatchSize                *int           `envconfig:"BULK_BATCH_SIZE"`
	BulkBatchPause               *time.Duration `envconfig:"BULK_BATCH_PAUSE"`
	BulkErrorSample              *int           `envconfig:"BULK_ERROR_SAMPLE"`
	S3RootUser                   *string        `envconfig:"S3_ROOT_USER"`
	S3RootPassword               *string        `envconfig:"S3_ROOT_PASSWORD"`
	S3Bucket                     *string        `envconfig:"S3_BUCKET"`
	S3Region                     *string        `envconfig:"S3_REGION"`
	S3BaseEndpoint               *string        `envconfig:"S3_BASE_ENDPOINT"`
	QRImagesEnabled              *bool          `envconfig:"QR_IMAGES"`
}

// parseEnv loads the .env file named by -env/-E (if any) into the process
// environment and overlays every DOORKEEPER_* variable that is set.
// A missing .env file or a malformed variable panics, like the JSON overlay.
func parseEnv(config *Config) {
	if f := flagx.EnvFileFlag(); f != "" {
		if err := godotenv.Load(f); err != nil {
			panic(err)
		}
	}

	var e EnvConfig
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		panic(err)
	}

	set(&config.EndpointAddrGRPC, e.EndpointAddrGRPC)
	set(&config.EndpointAddrHTTP, e.EndpointAddrHTTP)
	set(&config.DatabaseDSN, e.DatabaseDSN)
	set(&config.SecretKey, e.SecretKey)
	set(&config.AccessTokenValidityDuration, e.AccessTokenValidityDuration)
	set(&config.RefreshTokenValidityDuration, e.RefreshTokenValidityDuration)
	set(&config.QRTokenTTL, e.QRTokenTTL)
	set(&config.DefaultEventSlug, e.DefaultEventSlug)
	set(&config.DefaultEventCacheTTL, e.DefaultEventCacheTTL)
	set(&config.RateLimitMaxAttempts, e.RateLimitMaxAttempts)
	set(&config.RateLimitWindow, e.RateLimitWindow)
	set(&config.RedisURL, e.RedisURL)
	set(&config.TrustProxyHeaders, e.TrustProxyHeaders)
	set(&config.RabbitURL, e.RabbitURL)
	set(&config.RabbitExchange, e.RabbitExchange)
	set(&config.OTLPEndpoint, e.OTLPEndpoint)
	set(&config.BulkBatchSize, e.BulkBatchSize)
	set(&config.BulkBatchPause, e.BulkBatchPause)
	set(&config.BulkErrorSample, e.BulkErrorSample)
	set(&config.S3RootUser, e.S3RootUser)
	set(&config.S3RootPassword, e.S3RootPassword)
	set(&config.S3Bucket, e.S3Bucket)
	set(&config.S3Region, e.S3Region)
	set(&config.S3BaseEndpoint, e.S3BaseEndpoint)
	set(&config.QRImagesEnabled, e.QRImagesEnabled)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
