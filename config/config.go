package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config holds the client-side settings for talking to the chain and the two
// marketplace-facing contracts: the issuing collection (primary market) and
// the marketplace contract (secondary market).
type Config struct {
	RPCEndpoint        string `toml:"RPCEndpoint"`
	ChainID            int64  `toml:"ChainID"`
	CollectionAddress  string `toml:"CollectionAddress"`
	MarketplaceAddress string `toml:"MarketplaceAddress"`
	KeystorePath       string `toml:"KeystorePath"`
	Confirmations      uint64 `toml:"Confirmations"`
	ReceiptPollMillis  int64  `toml:"ReceiptPollMillis"`
	ServiceName        string `toml:"ServiceName"`
	Environment        string `toml:"Environment"`
	OTLPEndpoint       string `toml:"OTLPEndpoint,omitempty"`
}

// Load reads the configuration from the given path, creating a commented
// default file when none exists so a fresh checkout is immediately runnable.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		if len(undecoded) == 1 && undecoded[0] == "GasPriceGwei" {
			return nil, fmt.Errorf("config file %s uses removed GasPriceGwei field; fee settings now come from the node", path)
		}
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would only fail later at
// dial or submission time.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCEndpoint) == "" {
		return fmt.Errorf("config: RPCEndpoint required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("config: ChainID must be positive")
	}
	if !common.IsHexAddress(c.CollectionAddress) {
		return fmt.Errorf("config: CollectionAddress %q is not a hex address", c.CollectionAddress)
	}
	if !common.IsHexAddress(c.MarketplaceAddress) {
		return fmt.Errorf("config: MarketplaceAddress %q is not a hex address", c.MarketplaceAddress)
	}
	if c.ReceiptPollMillis <= 0 {
		return fmt.Errorf("config: ReceiptPollMillis must be positive")
	}
	return nil
}

// Collection returns the issuing contract address in checksummed form.
func (c *Config) Collection() common.Address {
	return common.HexToAddress(c.CollectionAddress)
}

// Marketplace returns the marketplace contract address in checksummed form.
func (c *Config) Marketplace() common.Address {
	return common.HexToAddress(c.MarketplaceAddress)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "tunemarket"
	}
	if cfg.ReceiptPollMillis == 0 {
		cfg.ReceiptPollMillis = 1500
	}
}

// createDefault creates and saves a default configuration file pointed at a
// local development node. The contract addresses are intentionally zero so a
// misconfigured deployment fails validation instead of silently targeting the
// wrong contracts.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCEndpoint:       "http://127.0.0.1:8545",
		ChainID:           1337,
		KeystorePath:      defaultKeystorePath(path),
		Confirmations:     1,
		ReceiptPollMillis: 1500,
		ServiceName:       "tunemarket",
		Environment:       "dev",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "wallet.keystore")
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
