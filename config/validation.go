package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Server.ProbeTimeout < 1 {
		return errors.New("probe timeout must be at least 1ms")
	}
	if c.Server.RetryProbeTimeout < c.Server.ProbeTimeout {
		return errors.New("retry probe timeout should not be shorter than the initial probe timeout")
	}

	if c.History.Limit < 1 {
		return errors.New("history limit must be positive")
	}

	switch strings.ToLower(c.Persistence.Backend) {
	case "file":
		if c.Persistence.Dir == "" {
			return errors.New("persistence.dir must be set for the file backend")
		}
	case "redis":
		if c.Persistence.Redis.Address == "" {
			return errors.New("redis address must be specified for the redis backend")
		}
	case "none":
		// In-memory only; sessions do not survive a server restart.
	default:
		return fmt.Errorf("invalid persistence backend: %s. Must be 'file', 'redis' or 'none'", c.Persistence.Backend)
	}

	if c.WebSocket.PingInterval >= c.WebSocket.ActivityTimeout {
		return errors.New("ping interval should be less than activity timeout")
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "NAPKIN_PORT")
	viper.BindEnv("server.probeTimeout", "NAPKIN_PROBE_TIMEOUT")
	viper.BindEnv("server.retryProbeTimeout", "NAPKIN_RETRY_PROBE_TIMEOUT")

	// History
	viper.BindEnv("history.limit", "NAPKIN_HISTORY_LIMIT")

	// Persistence
	viper.BindEnv("persistence.backend", "NAPKIN_PERSISTENCE_BACKEND")
	viper.BindEnv("persistence.dir", "NAPKIN_SESSION_DIR")
	viper.BindEnv("persistence.redis.address", "NAPKIN_REDIS_ADDRESS")
	viper.BindEnv("persistence.redis.password", "NAPKIN_REDIS_PASSWORD")

	// WebSocket
	viper.BindEnv("websocket.writeTimeout", "NAPKIN_WS_WRITE_TIMEOUT")
	viper.BindEnv("websocket.pingInterval", "NAPKIN_WS_PING_INTERVAL")
	viper.BindEnv("websocket.activityTimeout", "NAPKIN_WS_ACTIVITY_TIMEOUT")

	// Metrics
	viper.BindEnv("metrics.enabled", "NAPKIN_METRICS_ENABLED")
	viper.BindEnv("metrics.port", "NAPKIN_METRICS_PORT")
}
