package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const envPrefix = "SERP"

var cacheDrivers = map[string]bool{"none": true, "memory": true, "redis": true}

type manager struct {
	mu     sync.RWMutex
	config *Config
	viper  *viper.Viper
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

// Load reads configPath, applies SERP_* environment overrides and validates
// the result. An empty configPath loads defaults and environment only.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setupViper(configPath)

	if configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	config, err := m.decode()
	if err != nil {
		return nil, err
	}

	m.config = config
	return config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		return fmt.Errorf("config not loaded")
	}

	if m.viper.ConfigFileUsed() != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to reload config: %w", err)
		}
	}

	config, err := m.decode()
	if err != nil {
		return err
	}

	m.config = config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) decode() (*Config, error) {
	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (m *manager) setupViper(configPath string) {
	if configPath != "" {
		m.viper.SetConfigFile(configPath)
	}

	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	setDefaults(m.viper)
}

// setDefaults registers every key so AutomaticEnv can override values that
// are absent from the file
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("serp.endpoint", "")
	v.SetDefault("serp.api_key", "")
	v.SetDefault("serp.timeout", "30s")
	v.SetDefault("serp.max_conns_per_host", 10)
	v.SetDefault("serp.user_agent", "serp-go/1.0")

	v.SetDefault("volume.endpoint", "")
	v.SetDefault("volume.api_key", "")
	v.SetDefault("volume.timeout", "30s")
	v.SetDefault("volume.batch_size", 5)

	v.SetDefault("pipeline.results_per_query", 10)
	v.SetDefault("pipeline.keywords.min_length", 3)
	v.SetDefault("pipeline.keywords.max_length", 50)
	v.SetDefault("pipeline.keywords.max_non_word", 2)
	v.SetDefault("pipeline.keywords.max_words", 5)
	v.SetDefault("pipeline.keywords.max_results", 15)
	v.SetDefault("pipeline.scheduler.batch_size", 5)
	v.SetDefault("pipeline.scheduler.batch_delay", "500ms")
	v.SetDefault("pipeline.scheduler.max_attempts", 3)
	v.SetDefault("pipeline.scheduler.base_delay", "1s")
	v.SetDefault("pipeline.scheduler.max_delay", "5s")

	v.SetDefault("worker.max_workers", 4)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.task_timeout", "0s")
	v.SetDefault("worker.shutdown_timeout", "30s")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "data/serp.db")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.time_format", "")
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.SERP.Endpoint == "" {
		return fmt.Errorf("serp.endpoint cannot be empty")
	}

	if config.Pipeline.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("pipeline.scheduler.batch_size must be positive")
	}

	if config.Pipeline.Scheduler.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline.scheduler.max_attempts must be positive")
	}

	if config.Worker.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive")
	}

	if config.Worker.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}

	switch config.Storage.Driver {
	case "memory":
	case "sqlite":
		if config.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn cannot be empty for sqlite")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", config.Storage.Driver)
	}

	if !cacheDrivers[config.Cache.Driver] {
		return fmt.Errorf("unknown cache driver: %q", config.Cache.Driver)
	}
	if config.Cache.Driver == "redis" && config.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr cannot be empty")
	}

	return nil
}
