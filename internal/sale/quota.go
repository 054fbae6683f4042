package sale

import "math"

// recordEarlyMint books the one free early token for r. The claim check runs
// before the cap check, so an address that already claimed is told so even
// after the cap is exhausted.
func recordEarlyMint(h *Header, r *Record, lim Limits) error {
	if r.EarlyMinted {
		return ErrAlreadyClaimed
	}
	if h.EarlyIssued >= lim.EarlyCap {
		return ErrEarlyCapReached
	}
	if h.TotalSupply >= lim.MaxSupply {
		return ErrSupplyCapReached
	}
	r.EarlyMinted = true
	h.EarlyIssued++
	h.TotalSupply++
	return nil
}

// recordPhasedMint books quantity tokens for r in a paid phase.
func recordPhasedMint(h *Header, r *Record, phase Phase, quantity uint64, lim Limits) error {
	if err := checkQuantity(h, quantity, lim); err != nil {
		return err
	}
	switch phase {
	case PhaseOpen:
		r.Open += quantity
	default:
		r.General += quantity
	}
	h.TotalSupply += quantity
	return nil
}

// recordGrant books an authority mint. Only the supply cap applies.
func recordGrant(h *Header, r *Record, quantity uint64, lim Limits) error {
	if err := checkSupply(h, quantity, lim); err != nil {
		return err
	}
	r.Granted += quantity
	h.TotalSupply += quantity
	return nil
}

func checkQuantity(h *Header, quantity uint64, lim Limits) error {
	if quantity == 0 {
		return ErrZeroQuantity
	}
	if quantity > lim.MaxPerRequest {
		return ErrPerRequestLimitExceeded
	}
	return checkSupply(h, quantity, lim)
}

func checkSupply(h *Header, quantity uint64, lim Limits) error {
	if quantity > math.MaxUint64-h.TotalSupply || h.TotalSupply+quantity > lim.MaxSupply {
		return ErrSupplyCapReached
	}
	return nil
}
