// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package config loads and validates service configuration.
//
// Sources are layered, later ones winning: built-in defaults, the YAML
// file named by --config, legacy unprefixed environment variables,
// AUTHENTIC_ environment variables (nested keys joined by "__"), and
// explicitly set command-line flags.
package config

import (
	"net/url"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/authentic-auth/authentic/internal/auth"
	"github.com/authentic-auth/authentic/internal/logging"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "AUTHENTIC_"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Config is the complete service configuration. It is built once at
// startup and passed by reference.
type Config struct {
	JWTSecret   string      `koanf:"jwt_secret"`
	ClientURL   string      `koanf:"client_url"`
	Production  bool        `koanf:"production"`
	ListenAddr  string      `koanf:"listen_addr"`
	MetricsAddr string      `koanf:"metrics_addr"`
	LogFormat   string      `koanf:"log_format"`
	LogLevel    string      `koanf:"log_level"`
	Store       StoreConfig `koanf:"store"`
	SMTP        SMTPConfig  `koanf:"smtp"`
}

// StoreConfig selects and addresses the principal store.
type StoreConfig struct {
	Backend       string `koanf:"backend"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
	PostgresURL   string `koanf:"postgres_url"`
}

// SMTPConfig holds outbound mail settings. Mail is logged instead of sent
// unless host, user and password are all set.
type SMTPConfig struct {
	Host       string `koanf:"host"`
	User       string `koanf:"user"`
	Password   string `koanf:"password"`
	From       string `koanf:"from"`
	SkipVerify bool   `koanf:"skip_verify"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"client_url":           "http://localhost:5173",
		"production":           false,
		"listen_addr":          ":5000",
		"metrics_addr":         "127.0.0.1:9100",
		"log_format":           "json",
		"log_level":            "info",
		"store.backend":        BackendMongo,
		"store.mongo_uri":      "mongodb://localhost:27017",
		"store.mongo_database": "authentic",
		"store.postgres_url":   "",
		"smtp.host":            "",
		"smtp.user":            "",
		"smtp.password":        "",
		"smtp.from":            "Authentic <noreply@authentic.local>",
		"smtp.skip_verify":     false,
	}
}

// RegisterFlags adds the flags that Load reads to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("listen-addr", "", "API listen address")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("store-backend", "", "principal store backend (mongo, postgres or memory)")
	fs.String("client-url", "", "allowed client origin and reset link base")
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"listen-addr":   "listen_addr",
	"metrics-addr":  "metrics_addr",
	"log-format":    "log_format",
	"log-level":     "log_level",
	"store-backend": "store.backend",
	"client-url":    "client_url",
}

// legacyEnv maps unprefixed environment variables to configuration keys.
var legacyEnv = map[string]func(string) (string, any){
	"JWT_SECRET": func(v string) (string, any) { return "jwt_secret", v },
	"MONGO_URI":  func(v string) (string, any) { return "store.mongo_uri", v },
	"CLIENT_URL": func(v string) (string, any) { return "client_url", v },
	"PORT":       func(v string) (string, any) { return "listen_addr", ":" + v },
	"NODE_ENV":   func(v string) (string, any) { return "production", v == "production" },

	"DATABASE_URL": func(v string) (string, any) { return "store.postgres_url", v },
}

// Load builds a Config from all sources and validates it. path may be
// empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := Read(path, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a Config from all sources without validating it. Commands
// that need only part of the configuration check that part themselves.
func Read(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	legacy := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		mapping, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		return mapping(value)
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "legacy env").Wrap(err)
	}

	prefixed := env.Provider(EnvPrefix, ".", func(key string) string {
		key = strings.TrimPrefix(key, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(key), "__", ".")
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < auth.MinSigningKeyBytes {
		return invalid("jwt_secret", "must be at least %d bytes", auth.MinSigningKeyBytes)
	}

	u, err := url.Parse(c.ClientURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("client_url", "must be an absolute URL, got %q", c.ClientURL)
	}

	if c.ListenAddr == "" {
		return invalid("listen_addr", "is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level", "unknown level %q", c.LogLevel)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return invalid("store.mongo_uri", "is required for the mongo backend")
		}
		if c.Store.MongoDatabase == "" {
			return invalid("store.mongo_database", "is required for the mongo backend")
		}
	case BackendPostgres:
		if c.Store.PostgresURL == "" {
			return invalid("store.postgres_url", "is required for the postgres backend")
		}
	default:
		return invalid("store.backend", "unknown backend %q", c.Store.Backend)
	}
	return nil
}

// AllowedOrigin returns the client origin without any trailing slash.
func (c *Config) AllowedOrigin() string {
	return strings.TrimRight(c.ClientURL, "/")
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf("%s "+format, append([]any{field}, args...)...)
}
