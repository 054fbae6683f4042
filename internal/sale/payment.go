package sale

import "github.com/holiman/uint256"

// Settlement is the outcome of a successful payment check.
type Settlement struct {
	Charged *uint256.Int // amount retained as proceeds
	Refund  *uint256.Int // amount owed back to the caller
}

// Cost returns unit price × quantity. ok is false if the product does not
// fit in 256 bits, in which case no payment can cover it.
func Cost(pricing Pricing, quantity uint64) (cost *uint256.Int, ok bool) {
	c, overflow := new(uint256.Int).MulOverflow(pricing.UnitPrice, uint256.NewInt(quantity))
	return c, !overflow
}

// ValidatePayment checks paid against the price of quantity tokens in phase.
// The early phase is free; whatever was attached is returned as a refund.
func ValidatePayment(quantity uint64, paid *uint256.Int, phase Phase, pricing Pricing) (Settlement, error) {
	if paid == nil {
		paid = new(uint256.Int)
	}
	if phase == PhaseEarly {
		return Settlement{Charged: new(uint256.Int), Refund: paid.Clone()}, nil
	}

	cost, ok := Cost(pricing, quantity)
	if !ok || paid.Lt(cost) {
		return Settlement{}, ErrInsufficientFunds
	}

	if pricing.Overpayment == OverpaymentRefund {
		return Settlement{Charged: cost, Refund: new(uint256.Int).Sub(paid, cost)}, nil
	}
	return Settlement{Charged: paid.Clone(), Refund: new(uint256.Int)}, nil
}
