// Package config loads service configuration from a TOML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/liamcoop/shelflife/internal/logger"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full service configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Engine   EngineConfig   `toml:"engine"`
	RuleBook RuleBookConfig `toml:"rulebook"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// Durations use time.ParseDuration syntax, e.g. "15s"
	ReadTimeout    string `toml:"read_timeout"`
	WriteTimeout   string `toml:"write_timeout"`
	IdleTimeout    string `toml:"idle_timeout"`
	RequestTimeout string `toml:"request_timeout"`
	SlowRequest    string `toml:"slow_request"`
}

type StoreConfig struct {
	Driver      string `toml:"driver"`
	DatabaseURL string `toml:"database_url"`
	SQLitePath  string `toml:"sqlite_path"`
}

type EngineConfig struct {
	// Timezone is the IANA zone in which "today" is determined
	Timezone string `toml:"timezone"`
}

// RuleBookConfig names an artifact to import at startup. File takes
// precedence over S3 when both are set.
type RuleBookConfig struct {
	File        string `toml:"file"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Key       string `toml:"s3_key"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3PathStyle bool   `toml:"s3_path_style"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    "15s",
			WriteTimeout:   "15s",
			IdleTimeout:    "60s",
			RequestTimeout: "60s",
			SlowRequest:    "500ms",
		},
		Store: StoreConfig{
			Driver:     DriverMemory,
			SQLitePath: "shelflife.db",
		},
		Engine: EngineConfig{
			Timezone: "Local",
		},
		RuleBook: RuleBookConfig{
			S3Region: "us-east-1",
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	str("HOST", &c.Server.Host)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("SHELFLIFE_STORE", &c.Store.Driver)
	str("SHELFLIFE_SQLITE_PATH", &c.Store.SQLitePath)
	str("SHELFLIFE_TIMEZONE", &c.Engine.Timezone)
	str("SHELFLIFE_RULEBOOK_FILE", &c.RuleBook.File)
	str("SHELFLIFE_RULEBOOK_S3_BUCKET", &c.RuleBook.S3Bucket)
	str("SHELFLIFE_RULEBOOK_S3_KEY", &c.RuleBook.S3Key)
	str("SHELFLIFE_RULEBOOK_S3_REGION", &c.RuleBook.S3Region)
	str("SHELFLIFE_RULEBOOK_S3_ENDPOINT", &c.RuleBook.S3Endpoint)
	if v, ok := lookup("SHELFLIFE_RULEBOOK_S3_PATH_STYLE"); ok && v != "" {
		pathStyle, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SHELFLIFE_RULEBOOK_S3_PATH_STYLE %q: %w", v, err)
		}
		c.RuleBook.S3PathStyle = pathStyle
	}
	str("LOG_LEVEL", &c.Log.Level)

	// a DATABASE_URL alone selects postgres, matching older deployments
	if _, set := lookup("SHELFLIFE_STORE"); !set && c.Store.DatabaseURL != "" && c.Store.Driver == DriverMemory {
		c.Store.Driver = DriverPostgres
	}
	return nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	for _, d := range []struct{ name, value string }{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
		{"server.request_timeout", c.Server.RequestTimeout},
		{"server.slow_request", c.Server.SlowRequest},
	} {
		if parsed, err := time.ParseDuration(d.value); err != nil || parsed <= 0 {
			errs = append(errs, fmt.Errorf("%s %q is not a positive duration", d.name, d.value))
		}
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q (must be memory, postgres or sqlite)", c.Store.Driver))
	}

	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("engine.timezone: %w", err))
	}

	if (c.RuleBook.S3Bucket == "") != (c.RuleBook.S3Key == "") {
		errs = append(errs, errors.New("rulebook.s3_bucket and rulebook.s3_key must be set together"))
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// Location returns the engine timezone; call after Validate
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Durations are validated before use, so parse errors fall back to zero
func mustDuration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

func (s ServerConfig) ReadTimeoutDuration() time.Duration    { return mustDuration(s.ReadTimeout) }
func (s ServerConfig) WriteTimeoutDuration() time.Duration   { return mustDuration(s.WriteTimeout) }
func (s ServerConfig) IdleTimeoutDuration() time.Duration    { return mustDuration(s.IdleTimeout) }
func (s ServerConfig) RequestTimeoutDuration() time.Duration { return mustDuration(s.RequestTimeout) }
func (s ServerConfig) SlowRequestDuration() time.Duration    { return mustDuration(s.SlowRequest) }
