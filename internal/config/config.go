package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LedgerConfig holds the business parameters of the ledger core. They are
// passed into the workflow services explicitly instead of living as
// package-level constants.
type LedgerConfig struct {
	CommissionRate string            `yaml:"commission_rate"`
	BaseCurrency   string            `yaml:"base_currency"`
	ExchangeRates  map[string]string `yaml:"exchange_rates"`
}

// Rate parses the commission rate into a decimal.
func (l LedgerConfig) Rate() (decimal.Decimal, error) {
	return decimal.NewFromString(l.CommissionRate)
}

// Load reads yaml file and applies defaults and env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if cfg.Ledger.CommissionRate == "" {
		cfg.Ledger.CommissionRate = "0.10"
	}
	if cfg.Ledger.BaseCurrency == "" {
		cfg.Ledger.BaseCurrency = "EUR"
	}
	if len(cfg.Ledger.ExchangeRates) == 0 {
		cfg.Ledger.ExchangeRates = map[string]string{
			"EUR": "1.0",
			"USD": "1.1",
			"MGA": "4800.0",
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if _, ok := cfg.Ledger.ExchangeRates[cfg.Ledger.BaseCurrency]; !ok {
		return nil, fmt.Errorf("base currency %s missing from exchange rates", cfg.Ledger.BaseCurrency)
	}
	return &cfg, nil
}
