// Package config загружает конфигурацию сервиса из файла и переменных окружения
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"equipment-insight/internal/anomaly"
	"equipment-insight/internal/synthetic"
)

// Config содержит конфигурацию сервиса
type Config struct {
	ServerAddr    string `mapstructure:"server_addr"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`

	Contamination    float64 `mapstructure:"contamination"`
	NEstimators      int     `mapstructure:"n_estimators"`
	MaxSamples       int     `mapstructure:"max_samples"`
	MaxFeatures      float64 `mapstructure:"max_features"`
	Workers          int     `mapstructure:"workers"`
	RandomSeed       int64   `mapstructure:"random_seed"`
	FitMemoryLimitMB int64   `mapstructure:"fit_memory_limit_mb"`

	SyntheticEquipment int  `mapstructure:"synthetic_equipment"`
	TrainOnStart       bool `mapstructure:"train_on_start"`

	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load читает config.yaml (если есть) и переменные окружения SERVER_ADDR, REDIS_ADDR и т.д.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"/etc/equipment-insight/", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	a := anomaly.DefaultConfig()
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("contamination", a.Contamination)
	v.SetDefault("n_estimators", a.Estimators)
	v.SetDefault("max_samples", a.MaxSamples)
	v.SetDefault("max_features", a.MaxFeatures)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("random_seed", a.Seed)
	v.SetDefault("fit_memory_limit_mb", 512)
	v.SetDefault("synthetic_equipment", synthetic.DefaultConfig().Equipment)
	v.SetDefault("train_on_start", true)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("read_timeout", 15*time.Second)
	v.SetDefault("write_timeout", 15*time.Second)
	v.SetDefault("idle_timeout", 60*time.Second)
	v.SetDefault("shutdown_timeout", 30*time.Second)
}

// Validate проверяет параметры модели
func (c *Config) Validate() error {
	if c.Contamination <= 0 || c.Contamination > 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5], got %v", c.Contamination)
	}
	if c.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", c.NEstimators)
	}
	if c.MaxSamples <= 0 {
		return fmt.Errorf("max_samples must be positive, got %d", c.MaxSamples)
	}
	if c.MaxFeatures <= 0 || c.MaxFeatures > 1 {
		return fmt.Errorf("max_features must be in (0, 1], got %v", c.MaxFeatures)
	}
	if c.SyntheticEquipment <= 0 {
		return fmt.Errorf("synthetic_equipment must be positive, got %d", c.SyntheticEquipment)
	}
	return nil
}

// Anomaly параметры обучения модели аномалий
func (c *Config) Anomaly() anomaly.Config {
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return anomaly.Config{
		Estimators:    c.NEstimators,
		MaxSamples:    c.MaxSamples,
		MaxFeatures:   c.MaxFeatures,
		Contamination: c.Contamination,
		Workers:       workers,
		Seed:          c.RandomSeed,
		MemoryLimit:   c.FitMemoryLimitMB << 20,
	}
}

// Synthetic параметры генератора входных таблиц
func (c *Config) Synthetic() synthetic.Config {
	s := synthetic.DefaultConfig()
	s.Equipment = c.SyntheticEquipment
	s.Seed = c.RandomSeed
	return s
}
