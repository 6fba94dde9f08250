// Package config loads the process configuration from defaults, an optional
// TOML file, and XRPLDIG_-prefixed environment variables, in that priority
// order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/LeJamon/goXRPLdig/internal/network"
)

// Config is the full process configuration.
type Config struct {
	// Network is the default network when a request names none.
	Network string `mapstructure:"network"`

	// Transport selects how facet calls reach a node: "http" or "websocket".
	Transport string `mapstructure:"transport"`

	// Networks adds or overrides network definitions.
	Networks []NetworkConfig `mapstructure:"networks"`

	Timeouts TimeoutConfig `mapstructure:"timeouts"`
	Cache    CacheConfig   `mapstructure:"cache"`
	Server   ServerConfig  `mapstructure:"server"`
	Log      LogConfig     `mapstructure:"log"`
}

// NetworkConfig defines one network in the config file. It mirrors
// network.Descriptor with mapstructure tags.
type NetworkConfig struct {
	ID           string `mapstructure:"id"`
	DisplayName  string `mapstructure:"display_name"`
	WebSocketURL string `mapstructure:"websocket_url"`
	HTTPURL      string `mapstructure:"http_url"`
	Kind         string `mapstructure:"kind"`
}

// TimeoutConfig bounds the aggregation pipeline.
type TimeoutConfig struct {
	// Aggregate bounds a whole multi-facet aggregation.
	Aggregate time.Duration `mapstructure:"aggregate"`
	// Call bounds a single facet call.
	Call time.Duration `mapstructure:"call"`
	// Request bounds one served JSON-RPC request.
	Request time.Duration `mapstructure:"request"`
}

// CacheConfig controls the snapshot cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
	// Path enables persistent spill when non-empty.
	Path string `mapstructure:"path"`
}

// ServerConfig controls the JSON-RPC listener.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is "json" or "console".
	Format string `mapstructure:"format"`
}

// Load reads the configuration. An empty path loads defaults plus
// environment only; a named file must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("XRPLDIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ExtraNetworks converts configured networks to registry descriptors.
func (c *Config) ExtraNetworks() []network.Descriptor {
	out := make([]network.Descriptor, 0, len(c.Networks))
	for _, n := range c.Networks {
		out = append(out, network.Descriptor{
			ID:           n.ID,
			DisplayName:  n.DisplayName,
			WebSocketURL: n.WebSocketURL,
			HTTPURL:      n.HTTPURL,
			Kind:         network.Kind(n.Kind),
		})
	}
	return out
}
