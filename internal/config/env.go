package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
)

// Overrides are the settings that can be replaced through the environment.
// Unset variables keep the file value.
type Overrides struct {
	ListenAddress string   `env:"FUNDME_LISTEN_ADDRESS"`
	LogLevel      string   `env:"FUNDME_LOG_LEVEL"`
	Owner         string   `env:"FUNDME_OWNER"`
	KafkaBrokers  []string `env:"FUNDME_KAFKA_BROKERS" envSeparator:","`
	RedisAddr     string   `env:"FUNDME_REDIS_ADDR"`
	PriceFeed     string   `env:"FUNDME_PRICE_FEED"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv loads the .env file in dir into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies environment overrides to cfg.
func ApplyEnv(cfg *Config) error {
	var o Overrides
	if err := ParseEnv(&o); err != nil {
		return err
	}
	if o.ListenAddress != "" {
		cfg.Application.ListenAddress = o.ListenAddress
	}
	if o.LogLevel != "" {
		cfg.Application.LogLevel = o.LogLevel
	}
	if o.Owner != "" {
		owner, err := models.ParseAddress(o.Owner)
		if err != nil {
			return fmt.Errorf("FUNDME_OWNER: %w", err)
		}
		cfg.Ledger.Owner = owner
	}
	if len(o.KafkaBrokers) > 0 {
		cfg.Events.Kafka.Brokers = o.KafkaBrokers
	}
	if o.RedisAddr != "" {
		cfg.Oracle.Redis.Addr = o.RedisAddr
	}
	if o.PriceFeed != "" {
		feed, err := models.ParseAddress(o.PriceFeed)
		if err != nil {
			return fmt.Errorf("FUNDME_PRICE_FEED: %w", err)
		}
		cfg.Network.EthUsdPriceFeed = feed
	}
	return nil
}
