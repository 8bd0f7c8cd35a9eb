// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

// Package config loads the server configuration from an optional YAML file
// overlaid by command-line flags.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/breadsocial/bread/internal/auth"
)

// Store backends.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds every setting the serve and migrate commands read.
type Config struct {
	ListenAddr  string `koanf:"listen-addr"`
	MetricsAddr string `koanf:"metrics-addr"`
	LogFormat   string `koanf:"log-format"`
	LogLevel    string `koanf:"log-level"`

	StoreBackend  string `koanf:"store-backend"`
	MongoURI      string `koanf:"mongo-uri"`
	MongoDatabase string `koanf:"mongo-database"`
	DatabaseURL   string `koanf:"database-url"`

	// StoreConnectRetries bounds reconnect attempts at startup only.
	StoreConnectRetries uint64 `koanf:"store-connect-retries"`

	// TokenSecret signs session tokens. Empty means a random key is
	// generated at startup and sessions do not survive a restart.
	TokenSecret     string        `koanf:"token-secret"`
	SessionLifetime time.Duration `koanf:"session-lifetime"`
	CookieSecure    bool          `koanf:"cookie-secure"`

	HashMemory  uint32 `koanf:"hash-memory"`
	HashTime    uint32 `koanf:"hash-time"`
	HashThreads uint8  `koanf:"hash-threads"`

	LoginRate  float64 `koanf:"login-rate"`
	LoginBurst int     `koanf:"login-burst"`
}

// Default returns the configuration used when neither file nor flags set a key.
func Default() Config {
	params := auth.DefaultArgon2idParams()
	return Config{
		ListenAddr:          "127.0.0.1:8000",
		MetricsAddr:         "127.0.0.1:9100",
		LogFormat:           "json",
		LogLevel:            "info",
		StoreBackend:        BackendMongo,
		MongoURI:            "mongodb://localhost:27017",
		MongoDatabase:       "bread",
		StoreConnectRetries: 5,
		CookieSecure:        true,
		HashMemory:          params.Memory,
		HashTime:            params.Time,
		HashThreads:         params.Threads,
		LoginRate:           1,
		LoginBurst:          5,
	}
}

// RegisterFlags defines one flag per key on fs, defaulting to Default().
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("listen-addr", d.ListenAddr, "API listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn or error)")
	fs.String("store-backend", d.StoreBackend, "document store (mongo, postgres or memory)")
	fs.String("mongo-uri", d.MongoURI, "MongoDB connection URI")
	fs.String("mongo-database", d.MongoDatabase, "MongoDB database name")
	fs.String("database-url", d.DatabaseURL, "PostgreSQL connection URL")
	fs.Uint64("store-connect-retries", d.StoreConnectRetries, "store connection attempts retried at startup")
	fs.String("token-secret", d.TokenSecret, "session token signing secret (empty = random per process)")
	fs.Duration("session-lifetime", d.SessionLifetime, "session token lifetime (0 = tokens expire immediately)")
	fs.Bool("cookie-secure", d.CookieSecure, "mark the session cookie Secure")
	fs.Uint32("hash-memory", d.HashMemory, "argon2id memory in KiB")
	fs.Uint32("hash-time", d.HashTime, "argon2id iterations")
	fs.Uint8("hash-threads", d.HashThreads, "argon2id parallelism")
	fs.Float64("login-rate", d.LoginRate, "login/register requests per second per client")
	fs.Int("login-burst", d.LoginBurst, "login/register burst per client")
}

// Load reads path (if non-empty) and then overlays the flags explicitly set
// on fs. Flags left at their defaults only fill keys the file did not set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen-addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log-level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return oops.Code("CONFIG_INVALID").Errorf("mongo-uri and mongo-database are required for the mongo backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database-url is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return oops.Code("CONFIG_INVALID").Errorf("store-backend must be mongo, postgres or memory, got %q", c.StoreBackend)
	}
	if c.TokenSecret != "" && len(c.TokenSecret) < auth.SigningKeyBytes {
		return oops.Code("CONFIG_INVALID").Errorf("token-secret must be at least %d bytes", auth.SigningKeyBytes)
	}
	if c.SessionLifetime < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session-lifetime cannot be negative, got %s", c.SessionLifetime)
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("login-rate and login-burst must be positive")
	}
	if _, err := c.HashParams(); err != nil {
		return err
	}
	return nil
}

// HashParams returns the argon2id parameters, rejecting unusable costs.
func (c *Config) HashParams() (auth.Argon2idParams, error) {
	params := auth.DefaultArgon2idParams()
	params.Memory = c.HashMemory
	params.Time = c.HashTime
	params.Threads = c.HashThreads
	if err := params.Validate(); err != nil {
		return auth.Argon2idParams{}, err
	}
	return params, nil
}

// SigningKey returns the configured secret, or a fresh random key when none
// is configured.
func (c *Config) SigningKey() ([]byte, error) {
	if c.TokenSecret != "" {
		return []byte(c.TokenSecret), nil
	}
	return auth.GenerateSigningKey()
}
