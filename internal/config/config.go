package config

import (
	"time"

	"serp-go/pkg/keyword"
	"serp-go/pkg/logger"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
	"serp-go/pkg/worker"
)

type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	SERP     serp.ClientConfig     `mapstructure:"serp"`
	Volume   serp.VolumeConfig     `mapstructure:"volume"`
	Pipeline PipelineConfig        `mapstructure:"pipeline"`
	Worker   worker.PoolConfig     `mapstructure:"worker"`
	Storage  storage.StorageConfig `mapstructure:"storage"`
	Cache    CacheConfig           `mapstructure:"cache"`
	Logger   logger.Config         `mapstructure:"logger"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PipelineConfig struct {
	ResultsPerQuery int                    `mapstructure:"results_per_query"`
	Keywords        keyword.Config         `mapstructure:"keywords"`
	Scheduler       worker.SchedulerConfig `mapstructure:"scheduler"`
}

// CacheConfig selects the SERP result cache: "none", "memory" or "redis"
type CacheConfig struct {
	Driver  string           `mapstructure:"driver"`
	TTL     time.Duration    `mapstructure:"ttl"`
	MaxSize int              `mapstructure:"max_size"`
	Redis   serp.RedisConfig `mapstructure:"redis"`
}

// VolumeEnabled reports whether the optional volume lookup is configured
func (c *Config) VolumeEnabled() bool {
	return c.Volume.Endpoint != ""
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
