package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"thousandx/native/fees"
	"thousandx/native/market"
)

// Defaults applied when the config file is absent or fields are omitted. The
// create fee is 0.001 native units at 18 decimals.
const (
	DefaultListenAddress = "0.0.0.0:8645"
	DefaultDataDir       = "./data"
	DefaultEnv           = "local"
	DefaultCreateFee     = "1000000000000000"
	DefaultTradeFeeBps   = 100
	DefaultCreatorFeeBps = 50
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Env           string `toml:"Env"`
	Owner         string `toml:"Owner"`
	FeeRecipient  string `toml:"FeeRecipient"`
	Vault         string `toml:"Vault"`
	CreateFee     string `toml:"CreateFee"`
	TradeFeeBps   uint32 `toml:"TradeFeeBps"`
	CreatorFeeBps uint32 `toml:"CreatorFeeBps"`
	RPCToken      string `toml:"RPCToken"`
}

// Load loads the configuration from the given path. A missing file yields a
// default configuration persisted to that path so operators can edit it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = DefaultEnv
	}
	if strings.TrimSpace(cfg.CreateFee) == "" {
		cfg.CreateFee = DefaultCreateFee
	}
	if cfg.TradeFeeBps == 0 && cfg.CreatorFeeBps == 0 {
		cfg.TradeFeeBps = DefaultTradeFeeBps
		cfg.CreatorFeeBps = DefaultCreatorFeeBps
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// Validate checks that the addresses and fee settings form a schedule the
// engine would accept.
func (c *Config) Validate() error {
	if _, err := c.OwnerAddress(); err != nil {
		return fmt.Errorf("config: invalid Owner: %w", err)
	}
	if _, err := c.FeeRecipientAddress(); err != nil {
		return fmt.Errorf("config: invalid FeeRecipient: %w", err)
	}
	if _, err := c.VaultAddress(); err != nil {
		return fmt.Errorf("config: invalid Vault: %w", err)
	}
	schedule, err := c.FeeSchedule()
	if err != nil {
		return err
	}
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// OwnerAddress parses the configured owner address.
func (c *Config) OwnerAddress() ([20]byte, error) {
	return market.ParseAddress(c.Owner)
}

// FeeRecipientAddress parses the configured fee recipient address.
func (c *Config) FeeRecipientAddress() ([20]byte, error) {
	return market.ParseAddress(c.FeeRecipient)
}

// VaultAddress parses the configured vault address.
func (c *Config) VaultAddress() ([20]byte, error) {
	return market.ParseAddress(c.Vault)
}

// FeeSchedule assembles the bootstrap fee schedule from the config.
func (c *Config) FeeSchedule() (fees.Schedule, error) {
	createFee, ok := new(big.Int).SetString(strings.TrimSpace(c.CreateFee), 10)
	if !ok || createFee.Sign() < 0 {
		return fees.Schedule{}, fmt.Errorf("config: invalid CreateFee %q", c.CreateFee)
	}
	recipient, err := c.FeeRecipientAddress()
	if err != nil {
		return fees.Schedule{}, fmt.Errorf("config: invalid FeeRecipient: %w", err)
	}
	return fees.Schedule{
		CreateFee:     createFee,
		TradeFeeBps:   c.TradeFeeBps,
		CreatorFeeBps: c.CreatorFeeBps,
		Recipient:     recipient,
	}, nil
}
