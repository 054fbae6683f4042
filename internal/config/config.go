package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Load reads config from dir (or creates defaults). dir defaults to ~/.w3mint.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3mint")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.configDir = dir
	if cfg.Backend == "" {
		cfg.Backend = BackendJSON
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	return saveJSON(filepath.Join(c.configDir, configFile), c)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// WalletsPath returns the wallet metadata file.
func (c *Config) WalletsPath() string {
	return filepath.Join(c.configDir, walletsFile)
}

// StatePath returns the sale state file for the configured backend.
func (c *Config) StatePath() string {
	if c.Backend == BackendSQLite {
		return filepath.Join(c.configDir, stateSQLite)
	}
	return filepath.Join(c.configDir, stateJSON)
}

// SetBackend switches the state backend.
func (c *Config) SetBackend(backend string) error {
	switch b := strings.ToLower(strings.TrimSpace(backend)); b {
	case BackendJSON, BackendSQLite:
		c.Backend = b
		return nil
	}
	return fmt.Errorf("unknown backend %q (use json or sqlite)", backend)
}

// Configured reports whether a sale authority has been set.
func (c *Config) Configured() bool {
	return c.Sale.Authority != ""
}

// Params converts the sale definition into engine parameters.
func (s SaleConfig) Params() (sale.Params, error) {
	if !common.IsHexAddress(s.Authority) {
		return sale.Params{}, fmt.Errorf("%w: authority %q is not an address", sale.ErrInvalidParams, s.Authority)
	}
	price, err := ParseWei(s.UnitPriceWei)
	if err != nil {
		return sale.Params{}, fmt.Errorf("%w: unit price: %v", sale.ErrInvalidParams, err)
	}
	policy, err := sale.ParseOverpaymentPolicy(s.Overpayment)
	if err != nil {
		return sale.Params{}, fmt.Errorf("%w: %v", sale.ErrInvalidParams, err)
	}

	p := sale.Params{
		Authority: common.HexToAddress(s.Authority),
		Limits: sale.Limits{
			MaxSupply:     s.MaxSupply,
			EarlyCap:      s.EarlyCap,
			MaxPerRequest: s.MaxPerRequest,
		},
		Pricing: sale.Pricing{UnitPrice: price, Overpayment: policy},
	}
	return p, p.Validate()
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		Backend:   BackendJSON,
		Sale:      defaultSale(),
		configDir: dir,
	}
}

func defaultSale() SaleConfig {
	return SaleConfig{
		MaxSupply:     sale.DefaultMaxSupply,
		EarlyCap:      sale.DefaultEarlyCap,
		MaxPerRequest: sale.DefaultMaxPerRequest,
		UnitPriceWei:  sale.DefaultUnitPriceWei,
		Overpayment:   string(sale.OverpaymentKeep),
	}
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ParseWei parses a decimal wei amount.
func ParseWei(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid wei amount %q: %w", s, err)
	}
	return v, nil
}
