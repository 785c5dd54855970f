package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the service
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Notification NotificationConfig `mapstructure:"notification"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Alerts       AlertsConfig       `mapstructure:"alerts"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds Postgres connection settings for the reading store.
// When disabled the service runs relay-and-alert only.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Table    string `mapstructure:"table"`
}

// ConnString returns the Postgres connection string
func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig holds the optional Redis backend for the cooldown tracker.
// An empty Addr selects the in-memory tracker.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotificationConfig holds the outbound push-notification collaborator.
// An empty URL disables dispatch.
type NotificationConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds the optional alert event export stream.
// Empty Brokers disables export.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// ThresholdConfig overrides one metric's alert range. Nil bounds are open.
type ThresholdConfig struct {
	Min *float64 `mapstructure:"min"`
	Max *float64 `mapstructure:"max"`
}

// AlertsConfig holds threshold evaluation and dispatch settings
type AlertsConfig struct {
	CooldownWindow time.Duration              `mapstructure:"cooldown_window"`
	QueueSize      int                        `mapstructure:"queue_size"`
	Workers        int                        `mapstructure:"workers"`
	SnapshotTTL    time.Duration              `mapstructure:"snapshot_ttl"`
	Thresholds     map[string]ThresholdConfig `mapstructure:"thresholds"`
}

// Load reads configuration from an optional yaml file in path, environment
// variables, and defaults, in increasing order of precedence for env vars.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit binds for the settings that commonly come from the environment
	v.BindEnv("server.addr", "SERVER_ADDR")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("database.enabled", "DATABASE_ENABLED")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_DBNAME")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("notification.url", "NOTIFICATION_URL")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No file is fine, env vars and defaults carry the config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration for local development
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("log.level", "info")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "sensors")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.table", "sensor_readings")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("notification.url", "")
	v.SetDefault("notification.timeout", "5s")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "sensor-alerts")
	v.SetDefault("kafka.write_timeout", "10s")
	v.SetDefault("kafka.max_retries", 2)
	v.SetDefault("kafka.retry_backoff", "250ms")

	v.SetDefault("alerts.cooldown_window", "10m")
	v.SetDefault("alerts.queue_size", 1000)
	v.SetDefault("alerts.workers", 4)
	v.SetDefault("alerts.snapshot_ttl", "5m")
}
