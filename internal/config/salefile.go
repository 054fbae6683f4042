package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadSaleFile reads a YAML sale definition. Unset limits fall back to the
// defaults. The price may be given in ether (unit_price) or wei
// (unit_price_wei), not both.
//
//	authority: 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266
//	max_supply: 10000
//	early_cap: 1000
//	max_per_request: 10
//	unit_price: 0.01
//	overpayment: keep
//	early_allowlist: og.txt
func LoadSaleFile(path string) (*SaleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sale file: %w", err)
	}

	f := saleFile{SaleConfig: defaultSale()}
	f.UnitPriceWei = ""

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing sale file %s: %w", path, err)
	}

	switch {
	case f.UnitPrice != "" && f.UnitPriceWei != "":
		return nil, fmt.Errorf("sale file %s: set unit_price or unit_price_wei, not both", path)
	case f.UnitPrice != "":
		wei, err := ParseEther(f.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("sale file %s: unit_price: %w", path, err)
		}
		f.UnitPriceWei = wei.Dec()
	case f.UnitPriceWei == "":
		f.UnitPriceWei = defaultSale().UnitPriceWei
	}

	if _, err := f.SaleConfig.Params(); err != nil {
		return nil, fmt.Errorf("sale file %s: %w", path, err)
	}

	base := filepath.Dir(path)
	return &SaleDefinition{
		Sale:             f.SaleConfig,
		EarlyAllowlist:   resolve(base, f.EarlyAllowlist),
		GeneralAllowlist: resolve(base, f.GeneralAllowlist),
	}, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
