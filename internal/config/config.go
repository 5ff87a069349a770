package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string
	DBMaxOpen   int
	DBMaxIdle   int

	RedisURL      string
	CacheTTL      time.Duration
	StatsCacheTTL time.Duration

	Kafka KafkaConfig

	// postgres or casdoor
	EnrollmentSource string

	Casdoor CasdoorConfig
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("cache_ttl", "10m")
	v.SetDefault("stats_cache_ttl", "1m")
	v.SetDefault("events_topic_prefix", "quiz")
	v.SetDefault("enrollment_source", "postgres")

	cacheTTL, err := time.ParseDuration(v.GetString("cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	statsTTL, err := time.ParseDuration(v.GetString("stats_cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Port:          v.GetString("port"),
		Environment:   v.GetString("environment"),
		LogLevel:      parseLogLevel(v.GetString("log_level")),
		DatabaseURL:   v.GetString("database_url"),
		DBMaxOpen:     v.GetInt("db_max_open_conns"),
		DBMaxIdle:     v.GetInt("db_max_idle_conns"),
		RedisURL:      v.GetString("redis_url"),
		CacheTTL:      cacheTTL,
		StatsCacheTTL: statsTTL,
		Kafka: KafkaConfig{
			Brokers:     splitList(v.GetString("kafka_brokers")),
			TopicPrefix: v.GetString("events_topic_prefix"),
		},
		EnrollmentSource: strings.ToLower(v.GetString("enrollment_source")),
		Casdoor: CasdoorConfig{
			Endpoint:     v.GetString("casdoor_endpoint"),
			ClientID:     v.GetString("casdoor_client_id"),
			ClientSecret: v.GetString("casdoor_client_secret"),
			Cert:         v.GetString("casdoor_cert"),
			Organization: v.GetString("casdoor_organization"),
			Application:  v.GetString("casdoor_application"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.EnrollmentSource {
	case "postgres", "casdoor":
	default:
		return fmt.Errorf("unsupported ENROLLMENT_SOURCE %q", c.EnrollmentSource)
	}
	if c.EnrollmentSource == "casdoor" && c.Casdoor.Endpoint == "" {
		return fmt.Errorf("CASDOOR_ENDPOINT is required when enrollment is sourced from casdoor")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
