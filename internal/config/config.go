package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Store backends
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Queue backends
const (
	QueueAsynq = "asynq"
	QueueRedis = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Redis     RedisConfig      `yaml:"redis"`
	Store     StoreConfig      `yaml:"store"`
	Queue     QueueConfig      `yaml:"queue"`
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// RedisConfig holds the redis connection shared by the store and queues
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig selects where status records live
type StoreConfig struct {
	Backend  string        `yaml:"backend"`
	DSN      string        `yaml:"dsn"`
	ExpireIn time.Duration `yaml:"expire_in"`
	Codec    string        `yaml:"codec"`
}

// QueueConfig selects the queue jobs are delivered through
type QueueConfig struct {
	Backend      string        `yaml:"backend"`
	Namespace    string        `yaml:"namespace"`
	Queues       []string      `yaml:"queues"`
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxRetry     int           `yaml:"max_retry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
}

// ScheduleConfig is a cron entry that enqueues a job
type ScheduleConfig struct {
	Spec    string         `yaml:"spec"`
	Queue   string         `yaml:"queue"`
	Job     string         `yaml:"job"`
	Options map[string]any `yaml:"options"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Redis: RedisConfig{Addr: "localhost:6379"},
		Store: StoreConfig{
			Backend: StoreRedis,
			Codec:   "json",
		},
		Queue: QueueConfig{
			Backend:      QueueRedis,
			Namespace:    "resque",
			Queues:       []string{"statused"},
			Concurrency:  5,
			PollInterval: time.Second,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// Load reads the configuration file on top of the defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required")
		}
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("invalid store backend: %q", c.Store.Backend)
	}

	if c.Store.ExpireIn < 0 {
		return fmt.Errorf("store expire_in must not be negative")
	}

	if c.Store.Codec != "json" && c.Store.Codec != "msgpack" {
		return fmt.Errorf("invalid store codec: %q", c.Store.Codec)
	}

	if c.Queue.Backend != QueueAsynq && c.Queue.Backend != QueueRedis {
		return fmt.Errorf("invalid queue backend: %q", c.Queue.Backend)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required by the %s queue", c.Queue.Backend)
	}

	if len(c.Queue.Queues) == 0 {
		return fmt.Errorf("at least one queue is required")
	}

	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue concurrency must be greater than 0")
	}

	if c.Queue.Backend == QueueRedis && c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue poll_interval must be greater than 0")
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	for i, s := range c.Schedules {
		if s.Spec == "" || s.Job == "" {
			return fmt.Errorf("schedule %d: spec and job are required", i)
		}
	}

	return nil
}
