package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// ErrFractionalWei is returned when an ether amount has more than 18
	// decimal places.
	ErrFractionalWei = errors.New("amount is not a whole number of wei")
)

// ParseEther converts a decimal ether amount ("0.01", "1", "1e-3") to wei.
// The conversion is exact; amounts finer than one wei are rejected.
func ParseEther(s string) (*uint256.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", s)
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		return nil, fmt.Errorf("%s: %w", s, ErrFractionalWei)
	}
	v, overflow := uint256.FromBig(r.Num())
	if overflow {
		return nil, fmt.Errorf("amount out of range: %s", s)
	}
	return v, nil
}

// FormatEther renders wei as a trimmed decimal ether string.
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	q, m := new(big.Int).QuoRem(wei.ToBig(), weiPerEther, new(big.Int))
	if m.Sign() == 0 {
		return q.String()
	}
	frac := m.String()
	frac = strings.Repeat("0", 18-len(frac)) + frac
	return q.String() + "." + strings.TrimRight(frac, "0")
}
