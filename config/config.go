package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server      ServerConfig
	History     HistoryConfig
	Persistence PersistenceConfig
	WebSocket   WebSocketConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	Port              int
	ProbeTimeout      int // Milliseconds
	RetryProbeTimeout int // Milliseconds, used after losing the bind race
	ShutdownTimeout   int // Seconds
}

type HistoryConfig struct {
	Limit int // Max snapshots retained per session
}

type PersistenceConfig struct {
	Backend string // "file", "redis", or "none"
	Dir     string // Session directory for the file backend
	Redis   RedisConfig
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

type WebSocketConfig struct {
	WriteTimeout    int // Seconds
	PingInterval    int // Seconds
	ActivityTimeout int // Seconds
	KeepAlive       bool
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("NAPKIN")

		setDefaults()
		bindEnvVars()

		// The config file is optional; defaults and env vars carry a
		// bare install.
		if err := viper.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				initErr = fmt.Errorf("config file error: %w", err)
				return
			}
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
