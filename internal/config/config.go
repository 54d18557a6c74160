package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		Env             string        `yaml:"env"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		Driver  string `yaml:"driver"` // postgres, mysql, sqlite
		DSN     string `yaml:"url"`
		MaxOpen int    `yaml:"max_open"`
		MaxIdle int    `yaml:"max_idle"`
	} `yaml:"database"`

	Razorpay struct {
		KeyID         string        `yaml:"key_id"`
		KeySecret     string        `yaml:"key_secret"`
		WebhookSecret string        `yaml:"webhook_secret"`
		BaseURL       string        `yaml:"base_url"`
		Timeout       time.Duration `yaml:"timeout"`
		Fake          bool          `yaml:"fake"` // in-memory gateway for local runs
	} `yaml:"razorpay"`

	Payments struct {
		MinAmount       int64  `yaml:"min_amount"` // major units
		MaxAmount       int64  `yaml:"max_amount"` // major units
		DefaultCurrency string `yaml:"default_currency"`
	} `yaml:"payments"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		Enabled      bool   `yaml:"enabled"`
	} `yaml:"email"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	Storage struct {
		Type       string `yaml:"type"`        // local, s3
		BasePath   string `yaml:"base_path"`   // For local storage
		BaseURL    string `yaml:"base_url"`    // Public URL base
		Bucket     string `yaml:"bucket"`      // For S3
		Region     string `yaml:"region"`      // For S3
		AccessKey  string `yaml:"access_key"`  // For S3
		SecretKey  string `yaml:"secret_key"`  // For S3
		Endpoint   string `yaml:"endpoint"`    // S3-compatible endpoint
		PublicRead bool   `yaml:"public_read"` // Make receipts public
	} `yaml:"storage"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		Topic    string   `yaml:"topic"`
		ClientID string   `yaml:"client_id"`
	} `yaml:"kafka"`

	Workers struct {
		ReconciliationInterval time.Duration `yaml:"reconciliation_interval"`
		ReceiptSweepInterval   time.Duration `yaml:"receipt_sweep_interval"`
		BatchSize              int           `yaml:"batch_size"`
		Concurrency            int           `yaml:"concurrency"`
		MaxAttempts            int           `yaml:"max_attempts"`
	} `yaml:"workers"`
}

var AppConfig *Config

// LoadConfig читает YAML-файл (CONFIG_PATH) и накладывает переменные окружения.
// Если файла нет, конфигурация собирается только из окружения.
func LoadConfig() {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Load is LoadConfig without the global and without exiting on errors.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	f, err := os.Open(configPath)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file at %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Config file %s not found, using environment only", configPath)
	default:
		return nil, fmt.Errorf("failed to open config file at %s: %w", configPath, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Env, "APP_ENV")
	setString(&cfg.Server.Env, "SERVER_ENV")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")

	setString(&cfg.Razorpay.KeyID, "RAZORPAY_KEY_ID")
	setString(&cfg.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")
	setString(&cfg.Razorpay.WebhookSecret, "RAZORPAY_WEBHOOK_SECRET")

	setString(&cfg.JWT.Secret, "JWT_SECRET")

	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "SMTP_PORT")
	setString(&cfg.Email.SMTPUsername, "SMTP_USER")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.FromEmail, "SMTP_FROM")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Razorpay.BaseURL == "" {
		cfg.Razorpay.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Razorpay.Timeout == 0 {
		cfg.Razorpay.Timeout = 15 * time.Second
	}
	if cfg.Payments.MinAmount == 0 {
		cfg.Payments.MinAmount = 100
	}
	if cfg.Payments.MaxAmount == 0 {
		cfg.Payments.MaxAmount = 10_000_000
	}
	if cfg.Payments.DefaultCurrency == "" {
		cfg.Payments.DefaultCurrency = "INR"
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "Helping Hands"
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 60
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./receipts"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = time.Minute
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "donations"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "helpinghands-payments"
	}
	if cfg.Workers.ReconciliationInterval == 0 {
		cfg.Workers.ReconciliationInterval = 30 * time.Second
	}
	if cfg.Workers.ReceiptSweepInterval == 0 {
		cfg.Workers.ReceiptSweepInterval = 5 * time.Minute
	}
	if cfg.Workers.BatchSize == 0 {
		cfg.Workers.BatchSize = 50
	}
	if cfg.Workers.Concurrency == 0 {
		cfg.Workers.Concurrency = 4
	}
	if cfg.Workers.MaxAttempts == 0 {
		cfg.Workers.MaxAttempts = 10
	}
}

// Validate проверяет обязательные секреты. В development разрешен fake-шлюз без ключей.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database url is required (database.url or DATABASE_URL)")
	}
	if c.IsDevelopment() {
		return nil
	}

	var missing []string
	if c.Razorpay.KeyID == "" && !c.Razorpay.Fake {
		missing = append(missing, "RAZORPAY_KEY_ID")
	}
	if c.Razorpay.KeySecret == "" {
		missing = append(missing, "RAZORPAY_KEY_SECRET")
	}
	if c.Razorpay.WebhookSecret == "" {
		missing = append(missing, "RAZORPAY_WEBHOOK_SECRET")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
