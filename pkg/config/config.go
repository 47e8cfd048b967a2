package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sakib404-hub/zap-shit-server/pkg/utils"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Storage  Storage  `yaml:"storage"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Stripe   Stripe   `yaml:"stripe"`
	Auth     Auth     `yaml:"auth"`
	SMTP     SMTP     `yaml:"smtp"`
	Logger   Logger   `yaml:"logger"`
	Limiter  Limiter  `yaml:"limiter"`
	Tracing  Tracing  `yaml:"tracing"`
	Site     Site     `yaml:"site"`
	Outbox   Outbox   `yaml:"outbox"`
	Metrics  Metrics  `yaml:"metrics"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"PORT" env-default:":5015"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type GRPC struct {
	Port    string `yaml:"port" env:"GRPC_PORT" env-default:":50055"`
	Enabled bool   `yaml:"enabled" env:"GRPC_ENABLED" env-default:"true"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type PG struct {
	URL            string        `yaml:"url" env:"DB_URL"`
	MaxConns       int32         `yaml:"max_conns" env-default:"10"`
	MinConns       int32         `yaml:"min_conns" env-default:"2"`
	MigrationsPath string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env-default:"5s"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"zap-shift-notification-group"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"parcel_events"`
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"true"`
}

type Stripe struct {
	SecretKey     string        `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	APIURL        string        `yaml:"api_url" env:"STRIPE_API_URL"`
	Currency      string        `yaml:"currency" env:"STRIPE_CURRENCY" env-default:"usd"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
	MaxRetries    int64         `yaml:"max_retries" env-default:"2"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"ACCESS_SECRET"`
	Issuer    string `yaml:"issuer" env:"AUTH_ISSUER"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

type Logger struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Env   string `yaml:"env" env:"LOG_ENV" env-default:"dev"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

type Tracing struct {
	Endpoint string `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
	Enabled  bool   `yaml:"enabled" env:"TRACING_ENABLED" env-default:"true"`
}

type Site struct {
	Domain string `yaml:"domain" env:"SITE_DOMAIN" env-default:"http://localhost:5173"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env-default:"500ms"`
}

type Metrics struct {
	Port    string `yaml:"port" env:"METRICS_PORT" env-default:":9091"`
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres url is required for storage driver %q", c.Storage.Driver)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	return nil
}
