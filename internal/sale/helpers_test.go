package sale_test

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/Mohsinsiddi/w3mint/internal/merkle"
	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	authority = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	outsider  = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

const unitPrice = 100

// addr returns a deterministic test address; n must be positive.
func addr(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + n)))
}

func addrs(from, n int) []common.Address {
	out := make([]common.Address, n)
	for i := range out {
		out[i] = addr(from + i)
	}
	return out
}

func wei(n uint64) *uint256.Int {
	return uint256.NewInt(n)
}

func testParams(mutate func(*sale.Params)) sale.Params {
	p := sale.DefaultParams(authority)
	p.Pricing.UnitPrice = wei(unitPrice)
	if mutate != nil {
		mutate(&p)
	}
	return p
}

func newEngine(t *testing.T, mutate func(*sale.Params), opts ...sale.Option) *sale.Engine {
	t.Helper()
	e, err := sale.New(context.Background(), testParams(mutate), opts...)
	require.NoError(t, err)
	return e
}

// allowlist builds a tree over members and returns it with its proofs.
func allowlist(t *testing.T, members []common.Address) (*merkle.Tree, map[common.Address][]common.Hash) {
	t.Helper()
	tree, err := merkle.NewTree(members)
	require.NoError(t, err)
	proofs, err := tree.Proofs(members)
	require.NoError(t, err)
	return tree, proofs
}

// openSale sets the commitments, unpauses and advances to phase.
func openSale(t *testing.T, e *sale.Engine, early, general common.Hash, phase sale.Phase) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.SetEarlyCommitment(ctx, authority, early))
	require.NoError(t, e.SetGeneralCommitment(ctx, authority, general))
	require.NoError(t, e.Unpause(ctx, authority))
	if phase != sale.PhaseEarly {
		require.NoError(t, e.AdvancePhase(ctx, authority, phase))
	}
}

var errDiskFull = errors.New("disk full")

// flakyStore wraps a Store, counting Apply calls and failing them on demand.
type flakyStore struct {
	sale.Store
	applies atomic.Int64
	fail    atomic.Bool
}

func (s *flakyStore) Apply(ctx context.Context, c sale.Commit) error {
	s.applies.Add(1)
	if s.fail.Load() {
		return errDiskFull
	}
	return s.Store.Apply(ctx, c)
}
