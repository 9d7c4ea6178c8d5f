package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 4517)
	viper.SetDefault("server.probeTimeout", 1500)
	viper.SetDefault("server.retryProbeTimeout", 4000)
	viper.SetDefault("server.shutdownTimeout", 5)

	// History
	viper.SetDefault("history.limit", 50)

	// Persistence
	viper.SetDefault("persistence.backend", "file")
	viper.SetDefault("persistence.dir", defaultSessionDir())
	viper.SetDefault("persistence.redis.address", "localhost:6379")
	viper.SetDefault("persistence.redis.db", 0)
	viper.SetDefault("persistence.redis.poolSize", 10)

	// WebSocket
	viper.SetDefault("websocket.writeTimeout", 10)
	viper.SetDefault("websocket.pingInterval", 25)
	viper.SetDefault("websocket.activityTimeout", 300)
	viper.SetDefault("websocket.keepAlive", true)

	// Metrics
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".napkin", "sessions")
	}
	return filepath.Join(home, ".napkin", "sessions")
}
