package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "mainnet")
	v.SetDefault("transport", "http")

	v.SetDefault("timeouts.aggregate", 10*time.Second)
	v.SetDefault("timeouts.call", 5*time.Second)
	v.SetDefault("timeouts.request", 15*time.Second)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", 512)
	v.SetDefault("cache.ttl", 60*time.Second)
	v.SetDefault("cache.path", "")

	v.SetDefault("server.listen_addr", ":5005")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
