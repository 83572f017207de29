package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string
	AttestdEnv  string

	AdminAPIKey string

	AuthorityID              string
	SigningPrivateKeyBase64  string
	SigningPrivateKeySeedHex string
	SigningSecret            string

	StatusListURL    string
	PolicyBundlePath string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventChannel  string

	ShutdownTimeoutSeconds int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                 addr,
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		LogLevel:                 envDefault("LOG_LEVEL", "info"),
		AttestdEnv:               envDefault("ATTESTD_ENV", "development"),
		AdminAPIKey:              os.Getenv("ADMIN_API_KEY"),
		AuthorityID:              envDefault("AUTHORITY_ID", "did:web:attestd.local"),
		SigningPrivateKeyBase64:  os.Getenv("SIGNING_PRIVATE_KEY_BASE64"),
		SigningPrivateKeySeedHex: os.Getenv("SIGNING_PRIVATE_KEY_SEED_HEX"),
		SigningSecret:            os.Getenv("SIGNING_SECRET"),
		StatusListURL:            strings.TrimRight(os.Getenv("STATUS_LIST_URL"), "/"),
		PolicyBundlePath:         os.Getenv("POLICY_BUNDLE_PATH"),
		RateLimitRequests:        envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:   envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:      envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:         envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  envIntDefault("REDIS_DB", 0),
		EventChannel:             envDefault("EVENT_CHANNEL", "attestd.events"),
		ShutdownTimeoutSeconds:   envIntDefault("SHUTDOWN_TIMEOUT_SECONDS", 10),
	}
}

// IsProduction reports whether strict startup checks apply.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AttestdEnv, "production") || strings.EqualFold(c.AttestdEnv, "prod")
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
