// Package config loads skylens client configuration from file,
// environment variables, and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names, looked up in the working directory.
const (
	ConfigFileName    = "skylens.yaml"
	ConfigFileNameAlt = "skylens.yml"
)

// Default configuration values.
const (
	DefaultServiceURL  = "ws://localhost:1234/rpc"
	DefaultSessionFile = "session.json"
	DefaultHistoryPath = ".skylens/history.db"
)

// Config holds the client configuration.
type Config struct {
	// ServiceURL is the websocket endpoint of the sketch server.
	ServiceURL string `koanf:"service_url"`

	// SessionFile is the default path for saved sessions.
	SessionFile string `koanf:"session_file"`

	// HistoryPath is the local SQLite history database.
	HistoryPath string `koanf:"history_path"`

	// Seed initializes sampling-seed generation. Zero means derive from
	// the current time.
	Seed int64 `koanf:"seed"`

	Verbose bool `koanf:"verbose"`
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("service_url is required")
	}
	if !strings.HasPrefix(c.ServiceURL, "ws://") && !strings.HasPrefix(c.ServiceURL, "wss://") {
		return fmt.Errorf("service_url must be a ws:// or wss:// URL, got %q", c.ServiceURL)
	}
	return nil
}

// findConfigFile finds the config file to use.
// Priority: explicit path > skylens.yaml > skylens.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"service_url":  DefaultServiceURL,
		"session_file": DefaultSessionFile,
		"history_path": DefaultHistoryPath,
		"seed":         int64(0),
		"verbose":      false,
	}, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	configFileUsed := findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// SKYLENS_SERVICE_URL -> service_url
	if err := k.Load(env.Provider("SKYLENS_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SKYLENS_"))
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, configFileUsed, nil
}

// EnsureHistoryDir creates the directory holding the history database.
func (c *Config) EnsureHistoryDir() error {
	dir := filepath.Dir(c.HistoryPath)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	return nil
}
