package merkle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ErrInvalidAddress is returned when an allowlist entry is not a hex address.
var ErrInvalidAddress = errors.New("merkle: invalid address")

// yamlAllowlist accepts either a bare list or a mapping with an addresses key.
type yamlAllowlist struct {
	Addresses []string `yaml:"addresses"`
}

// LoadAllowlist reads addresses from path. The format is chosen by extension:
//
//	.json        ["0x...", "0x..."]
//	.yaml, .yml  a list, or a mapping with an "addresses" list
//	anything else: one address per line, blank lines and # comments ignored
func LoadAllowlist(path string) ([]common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading allowlist: %w", err)
	}

	var raw []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing allowlist: %w", err)
		}
	case ".yaml", ".yml":
		raw, err = parseYAMLAllowlist(data)
		if err != nil {
			return nil, err
		}
	default:
		raw = parseTextAllowlist(data)
	}
	return ParseAddresses(raw)
}

// ParseAddresses converts hex strings to addresses, rejecting anything that
// is not a 20-byte hex address.
func ParseAddresses(raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w at entry %d: %q", ErrInvalidAddress, i+1, s)
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}

func parseYAMLAllowlist(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc yamlAllowlist
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing allowlist: %w", err)
	}
	return doc.Addresses, nil
}

func parseTextAllowlist(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
