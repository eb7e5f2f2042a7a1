// Package config loads lspdial settings from a TOML file with environment
// variable overrides. Precedence, lowest to highest: built-in defaults,
// config file, LSPDIAL_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "LSPDIAL_"

// Config holds the settings for one language server connection.
type Config struct {
	// Target is the server address: "tcp:host:port", "unix:/path", or a
	// ws:// / wss:// URL.
	Target string `toml:"target"`

	// ClientName and ClientVersion identify this client to the server
	// during the initialize handshake.
	ClientName    string `toml:"client_name"`
	ClientVersion string `toml:"client_version"`

	// RootPath is the workspace root advertised to the server. Empty
	// means no workspace.
	RootPath string `toml:"root_path"`

	// RequestTimeout bounds each request that carries no caller deadline.
	RequestTimeout duration `toml:"request_timeout"`

	// LogLevel selects the log verbosity: trace, debug, info, warn,
	// error, or off.
	LogLevel string `toml:"log_level"`
}

// duration wraps time.Duration so TOML and env values can be written as
// "30s" or "2m".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ClientName:     "lspdial",
		ClientVersion:  "0.1.0",
		RequestTimeout: duration(30 * time.Second),
		LogLevel:       "info",
	}
}

// Timeout returns the request timeout as a time.Duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout)
}

// Load reads the config file at path and applies environment overrides on
// top of the defaults. A missing file is not an error; env overrides still
// apply. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus env only.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays LSPDIAL_ environment variables onto the config.
// Empty values are treated as unset.
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPrefix + "TARGET"); v != "" {
		c.Target = v
	}
	if v := os.Getenv(EnvPrefix + "CLIENT_NAME"); v != "" {
		c.ClientName = v
	}
	if v := os.Getenv(EnvPrefix + "CLIENT_VERSION"); v != "" {
		c.ClientVersion = v
	}
	if v := os.Getenv(EnvPrefix + "ROOT_PATH"); v != "" {
		c.RootPath = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %sREQUEST_TIMEOUT: %w", EnvPrefix, err)
		}
		c.RequestTimeout = duration(d)
	}
	return nil
}

// Validate checks that the config is usable for dialing.
func (c Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("no target configured: set target in the config file or %sTARGET", EnvPrefix)
	}
	if c.Timeout() < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	return nil
}
