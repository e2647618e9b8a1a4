// Package config loads per-network service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sheikh-saqib/funding-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/funding-ledger/internal/ledger"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/sheikh-saqib/funding-ledger/internal/native"
	"github.com/sheikh-saqib/funding-ledger/internal/oracle"
	"github.com/sheikh-saqib/funding-ledger/internal/storage"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the directory protocol files are looked up in.
const DefaultConfigPath = "./config"

// Development networks get a mock price feed deployed for them.
var devNetworks = []string{"hardhat", "localhost"}

// Config is the top-level configuration of a network.
type Config struct {
	Network     NetworkConfiguration     `yaml:"Network"`
	Ledger      LedgerConfiguration      `yaml:"Ledger"`
	Storage     storage.DBConfiguration  `yaml:"Storage"`
	Events      EventsConfiguration      `yaml:"Events"`
	Oracle      OracleConfiguration      `yaml:"Oracle"`
	Application ApplicationConfiguration `yaml:"Application"`
	Accounts    []Account                `yaml:"Accounts"`
}

// NetworkConfiguration identifies the network the ledger is deployed on.
type NetworkConfiguration struct {
	Name               string `yaml:"Name"`
	ChainID            uint64 `yaml:"ChainID"`
	Development        bool   `yaml:"Development"`
	BlockConfirmations uint32 `yaml:"BlockConfirmations"`
	// EthUsdPriceFeed is the aggregator address on public networks.
	EthUsdPriceFeed models.Address `yaml:"EthUsdPriceFeed"`
}

// LedgerConfiguration holds the deployment parameters of the ledger.
type LedgerConfiguration struct {
	Owner          models.Address     `yaml:"Owner"`
	MinimumUSD     decimal.Decimal    `yaml:"MinimumUSD"`
	NativeDecimals int32              `yaml:"NativeDecimals"`
	Gas            ledger.GasSchedule `yaml:"Gas"`
}

// EventsConfiguration selects the event backend. Events go to kafka when
// brokers are set and are kept in memory otherwise.
type EventsConfiguration struct {
	Kafka kafka.Options `yaml:"Kafka"`
}

// OracleConfiguration configures the price feed. Decimals and InitialAnswer
// are only used for the mock feed of development networks.
type OracleConfiguration struct {
	Decimals      uint8               `yaml:"Decimals"`
	InitialAnswer int64               `yaml:"InitialAnswer"`
	Redis         oracle.RedisOptions `yaml:"Redis"`
}

// ApplicationConfiguration is the service configuration.
type ApplicationConfiguration struct {
	ListenAddress   string        `yaml:"ListenAddress"`
	LogLevel        string        `yaml:"LogLevel"`
	LogPath         string        `yaml:"LogPath"`
	ReadTimeout     time.Duration `yaml:"ReadTimeout"`
	ShutdownTimeout time.Duration `yaml:"ShutdownTimeout"`
}

// Account is a genesis balance allocation.
type Account struct {
	Address models.Address  `yaml:"Address"`
	Balance decimal.Decimal `yaml:"Balance"`
}

// IsDev returns true for networks that run against a mock price feed.
func (n NetworkConfiguration) IsDev() bool {
	if n.Development {
		return true
	}
	for _, name := range devNetworks {
		if n.Name == name {
			return true
		}
	}
	return false
}

// Alloc returns the genesis allocations as a map.
func (c Config) Alloc() map[models.Address]decimal.Decimal {
	alloc := make(map[models.Address]decimal.Decimal, len(c.Accounts))
	for _, acc := range c.Accounts {
		alloc[acc.Address] = alloc[acc.Address].Add(acc.Balance)
	}
	return alloc
}

// Validate checks that c describes a deployable ledger.
func (c Config) Validate() error {
	if c.Ledger.Owner.IsZero() {
		return errors.New("Ledger.Owner is required")
	}
	if c.Ledger.MinimumUSD.IsNegative() {
		return errors.New("Ledger.MinimumUSD can't be negative")
	}
	if c.Ledger.NativeDecimals < 0 {
		return errors.New("Ledger.NativeDecimals can't be negative")
	}
	if !c.Network.IsDev() {
		if c.Network.EthUsdPriceFeed.IsZero() {
			return fmt.Errorf("network %q needs Network.EthUsdPriceFeed", c.Network.Name)
		}
		if c.Oracle.Redis.Addr == "" {
			return fmt.Errorf("network %q needs Oracle.Redis.Addr", c.Network.Name)
		}
	}
	if err := native.ValidateAmount(c.Ledger.Gas.Price); err != nil {
		return fmt.Errorf("Ledger.Gas.Price: %w", err)
	}
	for _, acc := range c.Accounts {
		if err := native.ValidateAmount(acc.Balance); err != nil {
			return fmt.Errorf("genesis balance of %s: %w", acc.Address, err)
		}
	}
	return nil
}

func defaults() Config {
	return Config{
		Ledger: LedgerConfiguration{
			MinimumUSD:     decimal.NewFromInt(50),
			NativeDecimals: 18,
			Gas:            ledger.DefaultGasSchedule(),
		},
		Oracle: OracleConfiguration{
			Decimals:      oracle.DefaultDecimals,
			InitialAnswer: oracle.DefaultInitialAnswer,
		},
		Application: ApplicationConfiguration{
			ListenAddress:   ":8080",
			LogLevel:        "info",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load reads protocol.<network>.yml from path. The .env file of path, if
// any, is loaded first and environment overrides are applied on top.
func Load(path, network string) (Config, error) {
	if err := LoadDotEnv(path); err != nil {
		return Config{}, err
	}
	cfg, err := LoadFile(filepath.Join(path, fmt.Sprintf("protocol.%s.yml", network)))
	if err != nil {
		return Config{}, err
	}
	if cfg.Network.Name == "" {
		cfg.Network.Name = network
	}
	return cfg, nil
}

// LoadFile reads the config file given and applies environment overrides.
func LoadFile(configPath string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(configData, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Networks lists the networks having a protocol file in path.
func Networks(path string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(path, "protocol.*.yml"))
	if err != nil {
		return nil, err
	}
	nets := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "protocol."), ".yml")
		nets = append(nets, name)
	}
	sort.Strings(nets)
	return nets, nil
}
