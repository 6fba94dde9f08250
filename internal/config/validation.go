package config

import (
	"fmt"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Network == "" {
		return fmt.Errorf("network cannot be empty")
	}

	switch c.Transport {
	case "http", "websocket":
	default:
		return fmt.Errorf("transport must be http or websocket, got %q", c.Transport)
	}

	if c.Timeouts.Aggregate <= 0 {
		return fmt.Errorf("timeouts.aggregate must be positive, got %s", c.Timeouts.Aggregate)
	}
	if c.Timeouts.Call <= 0 {
		return fmt.Errorf("timeouts.call must be positive, got %s", c.Timeouts.Call)
	}
	if c.Timeouts.Request <= 0 {
		return fmt.Errorf("timeouts.request must be positive, got %s", c.Timeouts.Request)
	}
	if c.Timeouts.Call > c.Timeouts.Aggregate {
		return fmt.Errorf("timeouts.call (%s) cannot exceed timeouts.aggregate (%s)",
			c.Timeouts.Call, c.Timeouts.Aggregate)
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}

	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr cannot be empty")
	}

	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	for i, n := range c.Networks {
		if n.ID == "" {
			return fmt.Errorf("networks[%d]: id cannot be empty", i)
		}
		if n.WebSocketURL == "" && n.HTTPURL == "" {
			return fmt.Errorf("networks[%d] (%s): needs a websocket_url or http_url", i, n.ID)
		}
	}
	return nil
}
