package sale

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Default sale limits.
const (
	DefaultMaxSupply     = uint64(10_000)
	DefaultEarlyCap      = uint64(1_000)
	DefaultMaxPerRequest = uint64(10)
)

// DefaultUnitPriceWei is 0.01 ether.
const DefaultUnitPriceWei = "10000000000000000"

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("sale: invalid parameters")

// OverpaymentPolicy decides what happens to payment above the exact cost.
type OverpaymentPolicy string

const (
	// OverpaymentKeep retains the excess as proceeds.
	OverpaymentKeep OverpaymentPolicy = "keep"
	// OverpaymentRefund charges the exact cost and reports the excess as a
	// refund owed to the caller.
	OverpaymentRefund OverpaymentPolicy = "refund"
)

// ParseOverpaymentPolicy parses "keep" or "refund". Empty means keep.
func ParseOverpaymentPolicy(s string) (OverpaymentPolicy, error) {
	switch OverpaymentPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverpaymentKeep:
		return OverpaymentKeep, nil
	case OverpaymentRefund:
		return OverpaymentRefund, nil
	}
	return "", fmt.Errorf("unknown overpayment policy %q (use keep or refund)", s)
}

// Limits are the fixed quotas of a sale.
type Limits struct {
	MaxSupply     uint64
	EarlyCap      uint64
	MaxPerRequest uint64
}

// Pricing applies to the General and Open phases; Early is free.
type Pricing struct {
	UnitPrice   *uint256.Int
	Overpayment OverpaymentPolicy
}

// Params fully describe a sale. They are fixed for the lifetime of an Engine.
type Params struct {
	Authority common.Address
	Limits    Limits
	Pricing   Pricing
}

// DefaultParams returns the default limits and pricing for authority.
func DefaultParams(authority common.Address) Params {
	price, _ := uint256.FromDecimal(DefaultUnitPriceWei)
	return Params{
		Authority: authority,
		Limits: Limits{
			MaxSupply:     DefaultMaxSupply,
			EarlyCap:      DefaultEarlyCap,
			MaxPerRequest: DefaultMaxPerRequest,
		},
		Pricing: Pricing{
			UnitPrice:   price,
			Overpayment: OverpaymentKeep,
		},
	}
}

// Validate checks that the parameters describe a usable sale.
func (p Params) Validate() error {
	switch {
	case p.Authority == (common.Address{}):
		return fmt.Errorf("%w: authority address is not set", ErrInvalidParams)
	case p.Limits.MaxSupply == 0:
		return fmt.Errorf("%w: max supply must be positive", ErrInvalidParams)
	case p.Limits.MaxSupply > math.MaxInt64:
		// Counters are stored as signed 64-bit integers.
		return fmt.Errorf("%w: max supply %d exceeds %d", ErrInvalidParams, p.Limits.MaxSupply, int64(math.MaxInt64))
	case p.Limits.EarlyCap > p.Limits.MaxSupply:
		return fmt.Errorf("%w: early cap %d exceeds max supply %d", ErrInvalidParams, p.Limits.EarlyCap, p.Limits.MaxSupply)
	case p.Limits.MaxPerRequest == 0:
		return fmt.Errorf("%w: max per request must be positive", ErrInvalidParams)
	case p.Pricing.UnitPrice == nil:
		return fmt.Errorf("%w: unit price is not set", ErrInvalidParams)
	}
	if _, err := ParseOverpaymentPolicy(string(p.Pricing.Overpayment)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
