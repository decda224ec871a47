package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	Casdoor   CasdoorConfig
	Kafka     KafkaConfig
	SendGrid  SendGridConfig
	S3        S3Config
	RateLimit RateLimitConfig
	Catalog   CatalogConfig

	RollbarToken string
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

// KafkaConfig is optional; with no brokers events stay in process.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int

	// Proxies whose X-Forwarded-For is honoured. Empty trusts none.
	TrustedProxies []string
}

type CatalogConfig struct {
	CohortCount int
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	return loadFrom(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("environment", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")

	v.SetDefault("casdoor_endpoint", "")
	v.SetDefault("casdoor_client_id", "")
	v.SetDefault("casdoor_client_secret", "")
	v.SetDefault("casdoor_cert", "")
	v.SetDefault("casdoor_organization", "")
	v.SetDefault("casdoor_application", "")

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_consumer_group", "catalog-service")

	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("sendgrid_from_email", "noreply@nexus-academy.com")
	v.SetDefault("sendgrid_from_name", "Nexus Academy")

	v.SetDefault("aws_s3_bucket", "")
	v.SetDefault("aws_region", "ap-northeast-2")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")

	v.SetDefault("rate_limit_rps", 2.0)
	v.SetDefault("rate_limit_burst", 5)
	v.SetDefault("trusted_proxies", "")
	v.SetDefault("cohort_count", 5)

	v.SetDefault("rollbar_token", "")

	v.AutomaticEnv()
	return v
}

func loadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("environment"),
		Port:        v.GetString("port"),
		LogLevel:    parseLogLevel(v.GetString("log_level")),
		DatabaseURL: v.GetString("database_url"),
		RedisURL:    v.GetString("redis_url"),
		Casdoor: CasdoorConfig{
			Endpoint:     v.GetString("casdoor_endpoint"),
			ClientID:     v.GetString("casdoor_client_id"),
			ClientSecret: v.GetString("casdoor_client_secret"),
			Cert:         strings.ReplaceAll(v.GetString("casdoor_cert"), `\n`, "\n"),
			Organization: v.GetString("casdoor_organization"),
			Application:  v.GetString("casdoor_application"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(v.GetString("kafka_brokers")),
			ConsumerGroup: v.GetString("kafka_consumer_group"),
		},
		SendGrid: SendGridConfig{
			APIKey:    v.GetString("sendgrid_api_key"),
			FromEmail: v.GetString("sendgrid_from_email"),
			FromName:  v.GetString("sendgrid_from_name"),
		},
		S3: S3Config{
			Bucket:          v.GetString("aws_s3_bucket"),
			Region:          v.GetString("aws_region"),
			AccessKeyID:     v.GetString("aws_access_key_id"),
			SecretAccessKey: v.GetString("aws_secret_access_key"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate_limit_rps"),
			Burst:             v.GetInt("rate_limit_burst"),
			TrustedProxies:    splitList(v.GetString("trusted_proxies")),
		},
		Catalog: CatalogConfig{
			CohortCount: v.GetInt("cohort_count"),
		},
		RollbarToken: v.GetString("rollbar_token"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("invalid rate limit %.2f/%d", c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
	}
	if c.Catalog.CohortCount <= 0 {
		return fmt.Errorf("COHORT_COUNT must be positive, got %d", c.Catalog.CohortCount)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
