package sale_test

import (
	"context"
	"math"
	"testing"

	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// Construction and reads
// ---------------------------------------------------------------------------

func TestNewStartsPausedInEarly(t *testing.T) {
	e := newEngine(t, nil)

	assert.Equal(t, sale.PhaseEarly, e.CurrentPhase())
	assert.True(t, e.IsPaused())
	assert.Equal(t, sale.StatusPaused, e.Status())

	h := e.Header()
	assert.Zero(t, h.TotalSupply)
	assert.Zero(t, h.EarlyIssued)
	assert.True(t, h.Proceeds.IsZero())
	assert.Equal(t, common.Hash{}, h.EarlyRoot)
}

func TestNewRejectsInvalidParams(t *testing.T) {
	_, err := sale.New(context.Background(), sale.Params{})
	assert.ErrorIs(t, err, sale.ErrInvalidParams)

	_, err = sale.New(context.Background(), testParams(func(p *sale.Params) {
		p.Limits.EarlyCap = p.Limits.MaxSupply + 1
	}))
	assert.ErrorIs(t, err, sale.ErrInvalidParams)
}

func TestNewRejectsSupplyBeyondStorageRange(t *testing.T) {
	_, err := sale.New(context.Background(), testParams(func(p *sale.Params) {
		p.Limits.MaxSupply = math.MaxInt64 + 1
	}))
	assert.ErrorIs(t, err, sale.ErrInvalidParams)

	_, err = sale.New(context.Background(), testParams(func(p *sale.Params) {
		p.Limits.MaxSupply = math.MaxInt64
	}))
	assert.NoError(t, err)
}

func TestNewRejectsStoredStateBeyondLimits(t *testing.T) {
	ctx := context.Background()
	store := sale.NewMemStore()
	e := newEngine(t, nil, sale.WithStore(store))
	tree, proofs := allowlist(t, addrs(1, 2))
	openSale(t, e, tree.Root(), common.Hash{}, sale.PhaseEarly)
	for _, a := range addrs(1, 2) {
		_, err := e.EarlyMint(ctx, a, proofs[a])
		require.NoError(t, err)
	}
	require.NoError(t, e.AdvancePhase(ctx, authority, sale.PhaseOpen))
	_, err := e.OpenMint(ctx, addr(5), 8, wei(8*unitPrice))
	require.NoError(t, err)
	require.Equal(t, uint64(10), e.Header().TotalSupply)

	_, err = sale.New(ctx, testParams(func(p *sale.Params) {
		p.Limits.MaxSupply = 5
		p.Limits.EarlyCap = 1
	}), sale.WithStore(store))
	assert.ErrorIs(t, err, sale.ErrInvalidParams)
	assert.ErrorContains(t, err, "stored supply 10")

	_, err = sale.New(ctx, testParams(func(p *sale.Params) {
		p.Limits.EarlyCap = 1
	}), sale.WithStore(store))
	assert.ErrorIs(t, err, sale.ErrInvalidParams)
	assert.ErrorContains(t, err, "stored early mints 2")

	_, err = sale.New(ctx, testParams(func(p *sale.Params) {
		p.Limits.MaxSupply = 10
		p.Limits.EarlyCap = 2
	}), sale.WithStore(store))
	assert.NoError(t, err, "limits equal to the stored counters still resume")
}

func TestStatusFollowsPauseAndPhase(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	require.NoError(t, e.Unpause(ctx, authority))
	assert.Equal(t, sale.StatusEarly, e.Status())

	require.NoError(t, e.AdvancePhase(ctx, authority, sale.PhaseGeneral))
	assert.Equal(t, sale.StatusGeneral, e.Status())

	require.NoError(t, e.AdvancePhase(ctx, authority, sale.PhaseOpen))
	assert.Equal(t, sale.StatusOpen, e.Status())

	require.NoError(t, e.Pause(ctx, authority))
	assert.Equal(t, sale.StatusPaused, e.Status())
	assert.Equal(t, sale.PhaseOpen, e.CurrentPhase())
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	require.NoError(t, e.AdvancePhase(ctx, authority, sale.PhaseOpen))
	require.NoError(t, e.Unpause(ctx, authority))
	_, err := e.OpenMint(ctx, addr(1), 2, wei(2*unitPrice))
	require.NoError(t, err)

	snap := e.Snapshot()
	snap.TotalSupply = 999
	snap.Proceeds.SetUint64(1)
	snap.Records[addr(1)].Open = 42

	h := e.Header()
	assert.Equal(t, uint64(2), h.TotalSupply)
	assert.Equal(t, wei(2*unitPrice), h.Proceeds)
	rec, ok := e.Record(addr(1))
	require.True(t, ok)
	assert.Equal(t, uint64(2), rec.Open)
}

func TestRecordUnknownAddress(t *testing.T) {
	e := newEngine(t, nil)
	rec, ok := e.Record(addr(1))
	assert.False(t, ok)
	assert.Equal(t, addr(1), rec.Address)
	assert.Zero(t, rec.Total())
}

func TestEligible(t *testing.T) {
	ctx := context.Background()
	early, earlyProofs := allowlist(t, addrs(1, 3))
	general, generalProofs := allowlist(t, addrs(10, 3))
	e := newEngine(t, nil)
	require.NoError(t, e.SetEarlyCommitment(ctx, authority, early.Root()))
	require.NoError(t, e.SetGeneralCommitment(ctx, authority, general.Root()))

	assert.True(t, e.Eligible(sale.PhaseEarly, addr(1), earlyProofs[addr(1)]))
	assert.False(t, e.Eligible(sale.PhaseGeneral, addr(1), earlyProofs[addr(1)]))
	assert.True(t, e.Eligible(sale.PhaseGeneral, addr(11), generalProofs[addr(11)]))
	assert.True(t, e.Eligible(sale.PhaseOpen, outsider, nil))
}

// ---------------------------------------------------------------------------
// Authority operations
// ---------------------------------------------------------------------------

func TestAuthorityOperationsRejectOtherCallers(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	assert.ErrorIs(t, e.SetEarlyCommitment(ctx, outsider, common.Hash{1}), sale.ErrNotAuthority)
	assert.ErrorIs(t, e.SetGeneralCommitment(ctx, outsider, common.Hash{1}), sale.ErrNotAuthority)
	assert.ErrorIs(t, e.Unpause(ctx, outsider), sale.ErrNotAuthority)
	assert.ErrorIs(t, e.Pause(ctx, outsider), sale.ErrNotAuthority)
	assert.ErrorIs(t, e.AdvancePhase(ctx, outsider, sale.PhaseOpen), sale.ErrNotAuthority)
	_, err := e.AuthorityMint(ctx, outsider, outsider)
	assert.ErrorIs(t, err, sale.ErrNotAuthority)

	assert.Empty(t, cmp.Diff(sale.Genesis(), e.Snapshot()))
}

func TestSetCommitmentReplacesRoot(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	require.NoError(t, e.SetEarlyCommitment(ctx, authority, common.Hash{1}))
	require.NoError(t, e.SetEarlyCommitment(ctx, authority, common.Hash{2}))
	require.NoError(t, e.SetGeneralCommitment(ctx, authority, common.Hash{3}))

	h := e.Header()
	assert.Equal(t, common.Hash{2}, h.EarlyRoot)
	assert.Equal(t, common.Hash{3}, h.GeneralRoot)
}

func TestAdvancePhaseOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	assert.ErrorIs(t, e.AdvancePhase(ctx, authority, sale.PhaseEarly), sale.ErrInvalidPhaseTransition)
	require.NoError(t, e.AdvancePhase(ctx, authority, sale.PhaseGeneral))
	assert.ErrorIs(t, e.AdvancePhase(ctx, authority, sale.PhaseGeneral), sale.ErrInvalidPhaseTransition)
	assert.ErrorIs(t, e.AdvancePhase(ctx, authority, sale.PhaseEarly), sale.ErrInvalidPhaseTransition)
	assert.ErrorIs(t, e.AdvancePhase(ctx, authority, sale.Phase(7)), sale.ErrInvalidPhaseTransition)
	require.NoError(t, e.AdvancePhase(ctx, authority, sale.PhaseOpen))
	assert.Equal(t, sale.PhaseOpen, e.CurrentPhase())
}

func TestAdvancePhaseCanSkipGeneral(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.AdvancePhase(context.Background(), authority, sale.PhaseOpen))
	assert.Equal(t, sale.PhaseOpen, e.CurrentPhase())
}

func TestPauseIsIdempotentAndSkipsStore(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: sale.NewMemStore()}
	e := newEngine(t, nil, sale.WithStore(store))

	// Genesis is already paused.
	require.NoError(t, e.Pause(ctx, authority))
	assert.Zero(t, store.applies.Load())

	require.NoError(t, e.Unpause(ctx, authority))
	require.NoError(t, e.Unpause(ctx, authority))
	assert.Equal(t, int64(1), store.applies.Load())
	assert.False(t, e.IsPaused())
}

// ---------------------------------------------------------------------------
// Pause
// ---------------------------------------------------------------------------

func TestPausedRejectsEveryPublicMint(t *testing.T) {
	ctx := context.Background()
	members := addrs(1, 3)
	tree, proofs := allowlist(t, members)
	e := newEngine(t, nil)
	openSale(t, e, tree.Root(), tree.Root(), sale.PhaseOpen)
	require.NoError(t, e.Pause(ctx, authority))

	_, err := e.EarlyMint(ctx, addr(1), proofs[addr(1)])
	assert.ErrorIs(t, err, sale.ErrSalePaused)
	_, err = e.GeneralMint(ctx, addr(2), proofs[addr(2)], 1, wei(unitPrice))
	assert.ErrorIs(t, err, sale.ErrSalePaused)
	_, err = e.OpenMint(ctx, addr(3), 1, wei(unitPrice))
	assert.ErrorIs(t, err, sale.ErrSalePaused)
	_, err = e.OpenMint(ctx, addr(3), 0, nil)
	assert.ErrorIs(t, err, sale.ErrSalePaused, "pause is checked before anything else")

	assert.Zero(t, e.Header().TotalSupply)
}

func TestAuthorityMintIgnoresPauseAndPhase(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	require.True(t, e.IsPaused())

	r, err := e.AuthorityMint(ctx, authority, addr(1))
	require.NoError(t, err)
	assert.Equal(t, sale.KindAuthority, r.Kind)
	assert.Equal(t, addr(1), r.To)
	assert.Equal(t, uint64(1), r.FirstToken)
	assert.True(t, r.Charged.IsZero())

	rec, ok := e.Record(addr(1))
	require.True(t, ok)
	assert.Equal(t, uint64(1), rec.Granted)
	assert.Equal(t, sale.PhaseEarly, e.CurrentPhase())
}

func TestAuthorityMintRejectsZeroRecipient(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.AuthorityMint(context.Background(), authority, common.Address{})
	assert.ErrorIs(t, err, sale.ErrInvalidRecipient)
}

// ---------------------------------------------------------------------------
// Early phase
// ---------------------------------------------------------------------------

func TestEarlyMintScenario(t *testing.T) {
	ctx := context.Background()
	a, b, c, d, ee := addr(1), addr(2), addr(3), addr(4), addr(5)
	tree, proofs := allowlist(t, []common.Address{a, b, c, d, ee})
	e := newEngine(t, func(p *sale.Params) { p.Limits.EarlyCap = 4 })
	openSale(t, e, tree.Root(), common.Hash{}, sale.PhaseEarly)

	for i, who := range []common.Address{a, b, c, d} {
		r, err := e.EarlyMint(ctx, who, proofs[who])
		require.NoError(t, err, "early mint for member %d", i)
		assert.Equal(t, uint64(i+1), r.FirstToken)
		assert.Equal(t, r.FirstToken, r.LastToken)
	}

	_, err := e.EarlyMint(ctx, ee, proofs[ee])
	assert.ErrorIs(t, err, sale.ErrEarlyCapReached)

	f := addr(6)
	_, err = e.EarlyMint(ctx, f, proofs[a])
	assert.ErrorIs(t, err, sale.ErrNotEligible)

	_, err = e.EarlyMint(ctx, b, proofs[b])
	assert.ErrorIs(t, err, sale.ErrAlreadyClaimed)

	h := e.Header()
	assert.Equal(t, uint64(4), h.EarlyIssued)
	assert.Equal(t, uint64(4), h.TotalSupply)
}

func TestEarlyMintTwiceIsAlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	members := addrs(1, 8)
	tree, proofs := allowlist(t, members)
	e := newEngine(t, nil)
	openSale(t, e, tree.Root(), common.Hash{}, sale.PhaseEarly)

	for _, m := range members {
		_, err := e.EarlyMint(ctx, m, proofs[m])
		require.NoError(t, err)
		_, err = e.EarlyMint(ctx, m, proofs[m])
		assert.ErrorIs(t, err, sale.ErrAlreadyClaimed)
	}
	assert.Equal(t, uint64(len(members)), e.Header().EarlyIssued)
}

func TestEarlyMintWithoutCommitmentIsNotEligible(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.Unpause(context.Background(), authority))
	_, err := e.EarlyMint(context.Background(), addr(1), nil)
	assert.ErrorIs(t, err, sale.ErrNotEligible)
}

func TestEarlyMintStaysAvailableInLaterPhases(t *testing.T) {
	ctx := context.Background()
	tree, proofs := allowlist(t, addrs(1, 2))
	e := newEngine(t, nil)
	openSale(t, e, tree.Root(), common.Hash{}, sale.PhaseOpen)

	r, err := e.EarlyMint(ctx, addr(1), proofs[addr(1)])
	require.NoError(t, err)
	assert.Equal(t, sale.PhaseOpen, r.Phase)
	assert.True(t, r.Charged.IsZero())
}

func TestEarlyMintRefundsAttachedValue(t *testing.T) {
	ctx := context.Background()
	tree, proofs := allowlist(t, addrs(1, 1))
	e := newEngine(t, nil)
	openSale(t, e, tree.Root(), common.Hash{}, sale.PhaseEarly)

	r, err := e.EarlyMint(ctx, addr(1), proofs[addr(1)])
	require.NoError(t, err)
	assert.True(t, r.Charged.IsZero())
	assert.True(t, r.Refund.IsZero())
	assert.True(t, e.Header().Proceeds.IsZero())
}

func TestEarlyMintRespectsSupplyCap(t *testing.T) {
	ctx := context.Background()
	tree, proofs := allowlist(t, addrs(1, 2))
	e := newEngine(t, func(p *sale.Params) {
		p.Limits.MaxSupply = 1
		p.Limits.EarlyCap = 1
	})
	_, err := e.AuthorityMint(ctx, authority, outsider)
	require.NoError(t, err)
	openSale(t, e, tree.Root(), common.Hash{}, sale.PhaseEarly)

	_, err = e.EarlyMint(ctx, addr(1), proofs[addr(1)])
	assert.ErrorIs(t, err, sale.ErrSupplyCapReached)
}

// ---------------------------------------------------------------------------
// General and Open phases
// ---------------------------------------------------------------------------

func TestGeneralMintBeforeGeneralPhase(t *testing.T) {
	ctx := context.Background()
	tree, proofs := allowlist(t, addrs(1, 2))
	e := newEngine(t, nil)
	openSale(t, e, common.Hash{}, tree.Root(), sale.PhaseEarly)

	_, err := e.GeneralMint(ctx, addr(1), proofs[addr(1)], 1, wei(unitPrice))
	assert.ErrorIs(t, err, sale.ErrPhaseNotStartedYet)
}

func TestGeneralMintRequiresMembership(t *testing.T) {
	ctx := context.Background()
	tree, proofs := allowlist(t, addrs(1, 4))
	e := newEngine(t, nil)
	openSale(t, e, common.Hash{}, tree.Root(), sale.PhaseGeneral)

	_, err := e.GeneralMint(ctx, outsider, proofs[addr(1)], 1, wei(unitPrice))
	assert.ErrorIs(t, err, sale.ErrNotEligible)

	r, err := e.GeneralMint(ctx, addr(2), proofs[addr(2)], 3, wei(3*unitPrice))
	require.NoError(t, err)
	assert.Equal(t, sale.KindGeneral, r.Kind)
	assert.Equal(t, []uint64{1, 2, 3}, r.TokenIDs())
	_, err = uuid.Parse(r.ID)
	assert.NoError(t, err)

	rec, _ := e.Record(addr(2))
	assert.Equal(t, uint64(3), rec.General)
}

func TestGeneralMintPayment(t *testing.T) {
	ctx := context.Background()
	tree, proofs := allowlist(t, addrs(1, 2))
	e := newEngine(t, nil)
	openSale(t, e, common.Hash{}, tree.Root(), sale.PhaseGeneral)
	who, proof := addr(1), proofs[addr(1)]

	_, err := e.GeneralMint(ctx, who, proof, 3, wei(3*unitPrice-1))
	assert.ErrorIs(t, err, sale.ErrInsufficientFunds)
	_, err = e.GeneralMint(ctx, who, proof, 3, nil)
	assert.ErrorIs(t, err, sale.ErrInsufficientFunds)
	assert.Zero(t, e.Header().TotalSupply)

	r, err := e.GeneralMint(ctx, who, proof, 3, wei(3*unitPrice))
	require.NoError(t, err)
	assert.Equal(t, wei(3*unitPrice), r.Charged)
	assert.True(t, r.Refund.IsZero())

	r, err = e.GeneralMint(ctx, who, proof, 3, wei(3*unitPrice+50))
	require.NoError(t, err)
	assert.Equal(t, wei(3*unitPrice+50), r.Charged, "overpayment is kept by default")
	assert.True(t, r.Refund.IsZero())

	assert.Equal(t, wei(6*unitPrice+50), e.Header().Proceeds)
}

func TestOverpaymentRefundPolicy(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, func(p *sale.Params) { p.Pricing.Overpayment = sale.OverpaymentRefund })
	openSale(t, e, common.Hash{}, common.Hash{}, sale.PhaseOpen)

	r, err := e.OpenMint(ctx, addr(1), 2, wei(2*unitPrice+7))
	require.NoError(t, err)
	assert.Equal(t, wei(2*unitPrice), r.Charged)
	assert.Equal(t, wei(7), r.Refund)
	assert.Equal(t, wei(2*unitPrice), e.Header().Proceeds)
}

func TestOpenMintRejectedBeforeOpen(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	require.NoError(t, e.Unpause(ctx, authority))

	for _, phase := range []sale.Phase{sale.PhaseEarly, sale.PhaseGeneral} {
		if phase != sale.PhaseEarly {
			require.NoError(t, e.AdvancePhase(ctx, authority, phase))
		}
		_, err := e.OpenMint(ctx, addr(1), 1, wei(unitPrice))
		assert.ErrorIs(t, err, sale.ErrPhaseNotStartedYet, "phase %s", phase)
		_, err = e.OpenMint(ctx, addr(1), 1, nil)
		assert.ErrorIs(t, err, sale.ErrPhaseNotStartedYet, "phase %s", phase)
	}
}

func TestGeneralMintStaysAvailableInOpenPhase(t *testing.T) {
	ctx := context.Background()
	tree, proofs := allowlist(t, addrs(1, 2))
	e := newEngine(t, nil)
	openSale(t, e, common.Hash{}, tree.Root(), sale.PhaseOpen)

	_, err := e.GeneralMint(ctx, addr(1), proofs[addr(1)], 1, wei(unitPrice))
	require.NoError(t, err)
}

func TestQuantityLimits(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	openSale(t, e, common.Hash{}, common.Hash{}, sale.PhaseOpen)

	_, err := e.OpenMint(ctx, addr(1), 0, wei(0))
	assert.ErrorIs(t, err, sale.ErrZeroQuantity)

	limit := sale.DefaultMaxPerRequest
	_, err = e.OpenMint(ctx, addr(1), limit+1, wei((limit+1)*unitPrice))
	assert.ErrorIs(t, err, sale.ErrPerRequestLimitExceeded)

	_, err = e.OpenMint(ctx, addr(1), limit, wei(limit*unitPrice))
	assert.NoError(t, err)
}

func TestQuotaIsCheckedBeforePayment(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	openSale(t, e, common.Hash{}, common.Hash{}, sale.PhaseOpen)

	_, err := e.OpenMint(ctx, addr(1), sale.DefaultMaxPerRequest+1, nil)
	assert.ErrorIs(t, err, sale.ErrPerRequestLimitExceeded)
}

func TestUnpayableQuantityIsInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	e := newEngine(t, func(p *sale.Params) { p.Pricing.UnitPrice = huge })
	openSale(t, e, common.Hash{}, common.Hash{}, sale.PhaseOpen)

	maxInt := new(uint256.Int).SetAllOne()
	_, err := e.OpenMint(ctx, addr(1), 2, maxInt)
	assert.ErrorIs(t, err, sale.ErrInsufficientFunds)
}

// ---------------------------------------------------------------------------
// Supply cap
// ---------------------------------------------------------------------------

// Four early mints, five grants, four general buyers of five and fifteen
// open buyers of five, then one more open token to reach exactly 105.
func TestFullSaleTimeline(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, func(p *sale.Params) {
		p.Limits.MaxSupply = 105
		p.Limits.EarlyCap = 4
	})

	earlyList := addrs(1, 4)
	generalList := addrs(100, 4)
	earlyTree, earlyProofs := allowlist(t, earlyList)
	generalTree, generalProofs := allowlist(t, generalList)
	openSale(t, e, earlyTree.Root(), generalTree.Root(), sale.PhaseEarly)

	for _, m := range earlyList {
		_, err := e.EarlyMint(ctx, m, earlyProofs[m])
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		_, err := e.AuthorityMint(ctx, authority, addr(200+i))
		require.NoError(t, err)
	}

	require.NoError(t, e.AdvancePhase(ctx, authority, sale.PhaseGeneral))
	for _, m := range generalList {
		_, err := e.GeneralMint(ctx, m, generalProofs[m], 5, wei(5*unitPrice))
		require.NoError(t, err)
	}

	require.NoError(t, e.AdvancePhase(ctx, authority, sale.PhaseOpen))
	for i := 0; i < 15; i++ {
		_, err := e.OpenMint(ctx, addr(300+i), 5, wei(5*unitPrice))
		require.NoError(t, err)
	}
	r, err := e.OpenMint(ctx, addr(400), 1, wei(unitPrice))
	require.NoError(t, err)
	assert.Equal(t, uint64(105), r.LastToken)

	_, err = e.OpenMint(ctx, addr(401), 1, wei(unitPrice))
	assert.ErrorIs(t, err, sale.ErrSupplyCapReached)
	_, err = e.AuthorityMint(ctx, authority, addr(402))
	assert.ErrorIs(t, err, sale.ErrSupplyCapReached)

	h := e.Header()
	assert.Equal(t, uint64(105), h.TotalSupply)
	assert.Equal(t, uint64(4), h.EarlyIssued)
	assert.Equal(t, wei((20+75+1)*unitPrice), h.Proceeds)
}

func TestSupplyCapUnderConcurrentMints(t *testing.T) {
	ctx := context.Background()
	const maxSupply = 100
	e := newEngine(t, func(p *sale.Params) {
		p.Limits.MaxSupply = maxSupply
		p.Limits.EarlyCap = 0
	})
	openSale(t, e, common.Hash{}, common.Hash{}, sale.PhaseOpen)

	receipts := make(chan *sale.Receipt, 200)
	var g errgroup.Group
	for i := 0; i < 60; i++ {
		i := i
		g.Go(func() error {
			r, err := e.OpenMint(ctx, addr(i), 3, wei(3*unitPrice))
			if err == nil {
				receipts <- r
			} else if !assert.ErrorIs(t, err, sale.ErrSupplyCapReached) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			r, err := e.AuthorityMint(ctx, authority, addr(1000+i))
			if err == nil {
				receipts <- r
			} else if !assert.ErrorIs(t, err, sale.ErrSupplyCapReached) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(receipts)

	seen := make(map[uint64]bool)
	var issued uint64
	for r := range receipts {
		issued += r.Quantity
		for _, id := range r.TokenIDs() {
			assert.False(t, seen[id], "token %d issued twice", id)
			seen[id] = true
		}
	}
	h := e.Header()
	assert.LessOrEqual(t, h.TotalSupply, uint64(maxSupply))
	assert.Equal(t, issued, h.TotalSupply)
	for id := uint64(1); id <= h.TotalSupply; id++ {
		assert.True(t, seen[id], "token %d missing", id)
	}
}

// ---------------------------------------------------------------------------
// Store failures
// ---------------------------------------------------------------------------

func TestStoreFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: sale.NewMemStore()}
	e := newEngine(t, nil, sale.WithStore(store))
	openSale(t, e, common.Hash{}, common.Hash{}, sale.PhaseOpen)
	_, err := e.OpenMint(ctx, addr(1), 2, wei(2*unitPrice))
	require.NoError(t, err)

	before := e.Snapshot()
	store.fail.Store(true)

	_, err = e.OpenMint(ctx, addr(1), 2, wei(2*unitPrice))
	require.ErrorIs(t, err, errDiskFull)
	assert.Empty(t, sale.CodeOf(err), "store errors are not rejection reasons")

	_, err = e.AuthorityMint(ctx, authority, addr(2))
	require.ErrorIs(t, err, errDiskFull)
	require.ErrorIs(t, e.Pause(ctx, authority), errDiskFull)

	assert.Empty(t, cmp.Diff(before, e.Snapshot()))

	store.fail.Store(false)
	r, err := e.OpenMint(ctx, addr(1), 1, wei(unitPrice))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.FirstToken)
}

func TestRejectedMintDoesNotTouchStore(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: sale.NewMemStore()}
	e := newEngine(t, nil, sale.WithStore(store))
	openSale(t, e, common.Hash{}, common.Hash{}, sale.PhaseOpen)
	applied := store.applies.Load()

	_, err := e.OpenMint(ctx, addr(1), 1, wei(0))
	require.ErrorIs(t, err, sale.ErrInsufficientFunds)
	assert.Equal(t, applied, store.applies.Load())
	_, ok := e.Record(addr(1))
	assert.False(t, ok)
}
