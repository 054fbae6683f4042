// Package sale implements the mint admission engine: a capped-supply token
// sale that runs through an allowlisted free Early phase, an allowlisted paid
// General phase and a paid Open phase.
//
// Every request is checked fail-fast against a working copy of the state
// (pause flag, phase, eligibility, quota, payment) and committed to the Store
// in a single Apply call. A rejected request leaves no trace.
package sale

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3mint/internal/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// maxCommitAttempts bounds how often a transition is rebuilt when another
// writer sharing the store commits first.
const maxCommitAttempts = 8

// Engine owns the sale state and is the single serialized entry point for
// every mutation. It is safe for concurrent use.
type Engine struct {
	mu     sync.RWMutex
	params Params
	state  *State
	store  Store
	logger log.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists state through s. The default is an in-memory store.
func WithStore(s Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLogger sets the engine logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the receipt timestamp source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine for params, resuming from whatever the store holds
// or starting from Genesis.
func New(ctx context.Context, params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		params: params,
		store:  NewMemStore(),
		logger: log.New("module", "sale"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// reload replaces the in-memory state with what the store holds. Stored
// counters must fit the engine's limits.
func (e *Engine) reload(ctx context.Context) error {
	st, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading sale state: %w", err)
	}
	if st == nil {
		st = Genesis()
	}
	if st.Records == nil {
		st.Records = make(map[common.Address]*Record)
	}
	if st.Proceeds == nil {
		st.Proceeds = new(uint256.Int)
	}

	lim := e.params.Limits
	switch {
	case st.TotalSupply > lim.MaxSupply:
		return fmt.Errorf("%w: stored supply %d exceeds max supply %d", ErrInvalidParams, st.TotalSupply, lim.MaxSupply)
	case st.EarlyIssued > lim.EarlyCap:
		return fmt.Errorf("%w: stored early mints %d exceed early cap %d", ErrInvalidParams, st.EarlyIssued, lim.EarlyCap)
	}
	e.state = st
	return nil
}

// commit builds a transition from the current state and stores it. When
// another writer has committed first, the state is reloaded and build runs
// again against it. A nil commit from build means there is nothing to store.
func (e *Engine) commit(ctx context.Context, build func() (*Commit, error)) error {
	for attempt := 1; ; attempt++ {
		c, err := build()
		if err != nil || c == nil {
			return err
		}
		c.Header.Seq = e.state.Seq + 1

		err = e.store.Apply(ctx, *c)
		if err == nil {
			e.state.apply(*c)
			return nil
		}
		if !errors.Is(err, ErrStateChanged) || attempt == maxCommitAttempts {
			return fmt.Errorf("committing state: %w", err)
		}
		e.logger.Debug("Stored state changed, rebuilding", "attempt", attempt)
		if err := e.reload(ctx); err != nil {
			return err
		}
	}
}

// --- reads ---

// Params returns the fixed sale parameters.
func (e *Engine) Params() Params {
	return e.params
}

// CurrentPhase returns the current phase.
func (e *Engine) CurrentPhase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Phase
}

// IsPaused reports whether public minting is paused.
func (e *Engine) IsPaused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Paused
}

// Status returns the sale status derived from the pause flag and phase.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return statusOf(e.state.Paused, e.state.Phase)
}

// Header returns a copy of the current commitments and counters.
func (e *Engine) Header() Header {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Header.clone()
}

// Snapshot returns a deep copy of the full state.
func (e *Engine) Snapshot() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Record returns the mint record for addr, if it has ever minted.
func (e *Engine) Record(addr common.Address) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.state.Records[addr]
	if !ok {
		return Record{Address: addr}, false
	}
	return *r, true
}

// Eligible reports whether proof admits addr under the commitment for
// phase. The Open phase has no commitment and admits everyone.
func (e *Engine) Eligible(phase Phase, addr common.Address, proof []common.Hash) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch phase {
	case PhaseEarly:
		return merkle.Verify(e.state.EarlyRoot, addr, proof)
	case PhaseGeneral:
		return merkle.Verify(e.state.GeneralRoot, addr, proof)
	default:
		return true
	}
}

// --- authority operations ---

// SetEarlyCommitment replaces the early allowlist root.
func (e *Engine) SetEarlyCommitment(ctx context.Context, caller common.Address, root common.Hash) error {
	return e.update(ctx, caller, "Set early commitment", func(h *Header) (bool, error) {
		h.EarlyRoot = root
		return true, nil
	}, "root", root)
}

// SetGeneralCommitment replaces the general allowlist root.
func (e *Engine) SetGeneralCommitment(ctx context.Context, caller common.Address, root common.Hash) error {
	return e.update(ctx, caller, "Set general commitment", func(h *Header) (bool, error) {
		h.GeneralRoot = root
		return true, nil
	}, "root", root)
}

// Pause stops public minting. Pausing a paused sale is a no-op.
func (e *Engine) Pause(ctx context.Context, caller common.Address) error {
	return e.update(ctx, caller, "Paused sale", func(h *Header) (bool, error) {
		return setPaused(h, true), nil
	})
}

// Unpause resumes public minting. Unpausing a running sale is a no-op.
func (e *Engine) Unpause(ctx context.Context, caller common.Address) error {
	return e.update(ctx, caller, "Unpaused sale", func(h *Header) (bool, error) {
		return setPaused(h, false), nil
	})
}

// AdvancePhase moves the sale to target, which must come strictly after
// the current phase.
func (e *Engine) AdvancePhase(ctx context.Context, caller common.Address, target Phase) error {
	return e.update(ctx, caller, "Advanced phase", func(h *Header) (bool, error) {
		return true, advancePhase(h, target)
	}, "target", target)
}

// update runs an authority-only header change and commits it if fn reports
// a change.
func (e *Engine) update(ctx context.Context, caller common.Address, msg string, fn func(*Header) (bool, error), kv ...any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.params.Authority {
		e.logger.Debug("Rejected authority action", "action", msg, "caller", caller, "reason", ErrNotAuthority.Code)
		return ErrNotAuthority
	}

	changed := false
	err := e.commit(ctx, func() (*Commit, error) {
		h := e.state.Header.clone()
		ok, err := fn(&h)
		if err != nil {
			e.logger.Debug("Rejected authority action", "action", msg, "caller", caller, "reason", CodeOf(err))
			return nil, err
		}
		if changed = ok; !ok {
			return nil, nil
		}
		return &Commit{Header: h}, nil
	})
	if err != nil || !changed {
		return err
	}
	e.logger.Info(msg, append([]any{"phase", e.state.Phase, "paused", e.state.Paused}, kv...)...)
	return nil
}

// --- mints ---

type request struct {
	kind     MintKind
	caller   common.Address
	to       common.Address
	proof    []common.Hash
	quantity uint64
	paid     *uint256.Int
}

// EarlyMint claims the single free early token for caller.
func (e *Engine) EarlyMint(ctx context.Context, caller common.Address, proof []common.Hash) (*Receipt, error) {
	return e.mint(ctx, request{kind: KindEarly, caller: caller, to: caller, proof: proof, quantity: 1})
}

// GeneralMint buys quantity tokens for an address on the general allowlist.
func (e *Engine) GeneralMint(ctx context.Context, caller common.Address, proof []common.Hash, quantity uint64, paid *uint256.Int) (*Receipt, error) {
	return e.mint(ctx, request{kind: KindGeneral, caller: caller, to: caller, proof: proof, quantity: quantity, paid: paid})
}

// OpenMint buys quantity tokens once the sale is open to everyone.
func (e *Engine) OpenMint(ctx context.Context, caller common.Address, quantity uint64, paid *uint256.Int) (*Receipt, error) {
	return e.mint(ctx, request{kind: KindOpen, caller: caller, to: caller, quantity: quantity, paid: paid})
}

// AuthorityMint issues one token to `to`, bypassing pause and phase. The
// supply cap still applies.
func (e *Engine) AuthorityMint(ctx context.Context, caller, to common.Address) (*Receipt, error) {
	return e.mint(ctx, request{kind: KindAuthority, caller: caller, to: to, quantity: 1})
}

func (e *Engine) mint(ctx context.Context, req request) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		settlement Settlement
		first      uint64
	)
	err := e.commit(ctx, func() (*Commit, error) {
		h := e.state.Header.clone()
		rec, ok := e.state.Records[req.to]
		if ok {
			rec = rec.clone()
		} else {
			rec = &Record{Address: req.to}
		}

		var err error
		if settlement, err = e.admit(&h, rec, req); err != nil {
			e.logger.Debug("Rejected mint", "kind", req.kind, "caller", req.caller, "quantity", req.quantity, "reason", CodeOf(err))
			return nil, err
		}
		h.Proceeds = new(uint256.Int).Add(h.Proceeds, settlement.Charged)
		first = e.state.TotalSupply + 1
		return &Commit{Header: h, Record: rec}, nil
	})
	if err != nil {
		return nil, err
	}
	h := e.state.Header

	r := &Receipt{
		ID:         uuid.NewString(),
		Kind:       req.kind,
		Caller:     req.caller,
		To:         req.to,
		Phase:      h.Phase,
		Quantity:   req.quantity,
		FirstToken: first,
		LastToken:  h.TotalSupply,
		Charged:    settlement.Charged,
		Refund:     settlement.Refund,
		IssuedAt:   e.now().UTC(),
	}
	e.logger.Info("Admitted mint", "id", r.ID, "kind", r.Kind, "to", r.To, "quantity", r.Quantity,
		"first", r.FirstToken, "last", r.LastToken, "supply", h.TotalSupply)
	return r, nil
}

// admit runs every check for req against the working copies h and rec, in
// order, stopping at the first failure.
func (e *Engine) admit(h *Header, rec *Record, req request) (Settlement, error) {
	lim := e.params.Limits

	if req.kind == KindAuthority {
		if req.caller != e.params.Authority {
			return Settlement{}, ErrNotAuthority
		}
		if req.to == (common.Address{}) {
			return Settlement{}, ErrInvalidRecipient
		}
		if err := recordGrant(h, rec, req.quantity, lim); err != nil {
			return Settlement{}, err
		}
		return Settlement{Charged: new(uint256.Int), Refund: new(uint256.Int)}, nil
	}

	if h.Paused {
		return Settlement{}, ErrSalePaused
	}

	switch req.kind {
	case KindEarly:
		if err := requirePhase(h, PhaseEarly); err != nil {
			return Settlement{}, err
		}
		if !merkle.Verify(h.EarlyRoot, req.caller, req.proof) {
			return Settlement{}, ErrNotEligible
		}
		if err := recordEarlyMint(h, rec, lim); err != nil {
			return Settlement{}, err
		}
		return ValidatePayment(1, req.paid, PhaseEarly, e.params.Pricing)

	case KindGeneral:
		if err := requirePhase(h, PhaseGeneral); err != nil {
			return Settlement{}, err
		}
		if !merkle.Verify(h.GeneralRoot, req.caller, req.proof) {
			return Settlement{}, ErrNotEligible
		}
		if err := recordPhasedMint(h, rec, PhaseGeneral, req.quantity, lim); err != nil {
			return Settlement{}, err
		}
		return ValidatePayment(req.quantity, req.paid, PhaseGeneral, e.params.Pricing)

	case KindOpen:
		if err := requirePhase(h, PhaseOpen); err != nil {
			return Settlement{}, err
		}
		if err := recordPhasedMint(h, rec, PhaseOpen, req.quantity, lim); err != nil {
			return Settlement{}, err
		}
		return ValidatePayment(req.quantity, req.paid, PhaseOpen, e.params.Pricing)
	}
	return Settlement{}, fmt.Errorf("sale: unknown mint kind %q", req.kind)
}
