package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinWebhookSecretLength 网关注册 webhook 时要求的最短密钥长度
const MinWebhookSecretLength = 6

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	App       AppConfig       `mapstructure:"app"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库连接配置；DSN 非空时优先使用
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig Addr 为空表示不启用 redis
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	VerifyThrottle time.Duration `mapstructure:"verify_throttle"`
}

// RabbitMQConfig URL 为空表示不启用订单事件投递
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// GatewayConfig Kira-Pay 网关配置
type GatewayConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type WebhookConfig struct {
	Secret                string        `mapstructure:"secret"`
	Tolerance             time.Duration `mapstructure:"tolerance"`
	AllowLegacySignatures bool          `mapstructure:"allow_legacy_signatures"`
	MaxBodyBytes          int64         `mapstructure:"max_body_bytes"`
}

type AppConfig struct {
	PublicURL string `mapstructure:"public_url"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type RateLimitConfig struct {
	WebhookRPS   float64 `mapstructure:"webhook_rps"`
	WebhookBurst int     `mapstructure:"webhook_burst"`
}

type OutboxConfig struct {
	Workers      int           `mapstructure:"workers"`
	ClaimLimit   int           `mapstructure:"claim_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Lease        time.Duration `mapstructure:"lease"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	// 失败重试按 RetryBase * 2^attempts 退避，不超过 RetryMax
	RetryBase time.Duration `mapstructure:"retry_base"`
	RetryMax  time.Duration `mapstructure:"retry_max"`
}

// Load 读取配置：默认值 < config.yaml < 环境变量
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// 未单独配置管理令牌时沿用 API key
	if cfg.Gateway.AuthToken == "" {
		cfg.Gateway.AuthToken = cfg.Gateway.APIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "swagchain")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.verify_throttle", 5*time.Second)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "swagchain.orders")

	v.SetDefault("gateway.base_url", "https://api.kira-pay.com")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.auth_token", "")
	v.SetDefault("gateway.timeout", 10*time.Second)

	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.tolerance", 5*time.Minute)
	v.SetDefault("webhook.allow_legacy_signatures", true)
	v.SetDefault("webhook.max_body_bytes", int64(1<<20))

	v.SetDefault("app.public_url", "http://localhost:3000")
	v.SetDefault("jwt.secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "swagchain")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("ratelimit.webhook_rps", 50.0)
	v.SetDefault("ratelimit.webhook_burst", 100)

	v.SetDefault("outbox.workers", 2)
	v.SetDefault("outbox.claim_limit", 64)
	v.SetDefault("outbox.poll_interval", 500*time.Millisecond)
	v.SetDefault("outbox.lease", 2*time.Minute)
	v.SetDefault("outbox.max_attempts", 12)
	v.SetDefault("outbox.retry_base", time.Second)
	v.SetDefault("outbox.retry_max", 5*time.Minute)
}

// bindLegacyEnv 兼容旧部署里的环境变量名
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"gateway.base_url":   {"GATEWAY_BASE_URL", "KIRA_PAY_API_URL"},
		"gateway.api_key":    {"GATEWAY_API_KEY", "KIRA_PAY_API_KEY"},
		"gateway.auth_token": {"GATEWAY_AUTH_TOKEN", "KIRA_PAY_AUTH_TOKEN"},
		"webhook.secret":     {"WEBHOOK_SECRET", "KIRA_PAY_WEBHOOK_SECRET"},
		"app.public_url":     {"APP_PUBLIC_URL", "NEXT_PUBLIC_APP_URL"},
		"database.dsn":       {"DATABASE_DSN", "DATABASE_URL"},
		"redis.addr":         {"REDIS_ADDR"},
		"rabbitmq.url":       {"RABBITMQ_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Gateway.Timeout <= 0 {
		return errors.New("gateway timeout must be positive")
	}
	if c.Webhook.Tolerance <= 0 {
		return errors.New("webhook tolerance must be positive")
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		return errors.New("webhook max body size must be positive")
	}
	if c.App.PublicURL == "" {
		return errors.New("app public url is required")
	}
	return nil
}

// ValidateForRegistration 注册 webhook 前检查密钥
func (w WebhookConfig) ValidateForRegistration() error {
	if len(w.Secret) < MinWebhookSecretLength {
		return fmt.Errorf("missing or invalid webhook secret (min %d chars)", MinWebhookSecretLength)
	}
	return nil
}

// DefaultWebhookURL 网关回调地址
func (a AppConfig) DefaultWebhookURL() string {
	return strings.TrimRight(a.PublicURL, "/") + "/api/webhooks/kira-pay"
}
