package sale

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MintKind identifies the entry point a mint request came through.
type MintKind string

const (
	KindEarly     MintKind = "early"
	KindGeneral   MintKind = "general"
	KindOpen      MintKind = "open"
	KindAuthority MintKind = "authority"
)

// Receipt describes an admitted mint. Token IDs are sequential and start at
// 1; a receipt covers the closed range [FirstToken, LastToken].
type Receipt struct {
	ID         string
	Kind       MintKind
	Caller     common.Address
	To         common.Address
	Phase      Phase // sale phase at admission time
	Quantity   uint64
	FirstToken uint64
	LastToken  uint64
	Charged    *uint256.Int
	Refund     *uint256.Int
	IssuedAt   time.Time
}

// TokenIDs lists every token covered by the receipt.
func (r *Receipt) TokenIDs() []uint64 {
	ids := make([]uint64, 0, r.Quantity)
	for id := r.FirstToken; id <= r.LastToken; id++ {
		ids = append(ids, id)
	}
	return ids
}
