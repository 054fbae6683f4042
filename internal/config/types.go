package config

// Config holds all w3mint configuration.
type Config struct {
	DefaultWallet string     `json:"default_wallet"`
	Backend       string     `json:"backend"` // "json" | "sqlite"
	Sale          SaleConfig `json:"sale"`

	// internal: config dir path used for Save()
	configDir string
}

// SaleConfig is the persisted sale definition. Amounts are decimal wei
// strings so they survive JSON without precision loss.
type SaleConfig struct {
	Authority     string `json:"authority"       yaml:"authority"`
	MaxSupply     uint64 `json:"max_supply"      yaml:"max_supply"`
	EarlyCap      uint64 `json:"early_cap"       yaml:"early_cap"`
	MaxPerRequest uint64 `json:"max_per_request" yaml:"max_per_request"`
	UnitPriceWei  string `json:"unit_price_wei"  yaml:"unit_price_wei"`
	Overpayment   string `json:"overpayment"     yaml:"overpayment"` // "keep" | "refund"
}

// saleFile is the YAML sale definition accepted by LoadSaleFile. It extends
// SaleConfig with an ether-denominated price and optional allowlist paths.
type saleFile struct {
	SaleConfig `yaml:",inline"`

	UnitPrice        string `yaml:"unit_price"` // ether, e.g. "0.01"
	EarlyAllowlist   string `yaml:"early_allowlist"`
	GeneralAllowlist string `yaml:"general_allowlist"`
}

// SaleDefinition is the result of LoadSaleFile.
type SaleDefinition struct {
	Sale SaleConfig

	// Allowlist paths, resolved relative to the sale file. Empty if unset.
	EarlyAllowlist   string
	GeneralAllowlist string
}
