package sale

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Header is the fixed-size part of the sale state: commitments, phase, pause
// flag and global counters.
type Header struct {
	EarlyRoot   common.Hash
	GeneralRoot common.Hash
	Phase       Phase
	Paused      bool
	EarlyIssued uint64
	TotalSupply uint64
	Proceeds    *uint256.Int // retained payment, in wei
	Seq         uint64       // number of commits so far
}

// Record is the per-address mint history. It is created on the first
// successful mint for an address and never deleted.
type Record struct {
	Address     common.Address
	EarlyMinted bool
	General     uint64
	Open        uint64
	Granted     uint64 // tokens received through authority mints
}

// Total returns every token ever issued to the address.
func (r *Record) Total() uint64 {
	var n uint64
	if r.EarlyMinted {
		n = 1
	}
	return n + r.General + r.Open + r.Granted
}

// State is the complete persisted sale state.
type State struct {
	Header
	Records map[common.Address]*Record
}

// Genesis returns the initial state: phase Early, paused, no commitments.
func Genesis() *State {
	return &State{
		Header: Header{
			Phase:    PhaseEarly,
			Paused:   true,
			Proceeds: new(uint256.Int),
		},
		Records: make(map[common.Address]*Record),
	}
}

// Commit is one atomic state transition: the new header, plus the single
// record the transition touched (nil for header-only changes). Header.Seq is
// one more than the Seq of the state the commit was built from.
type Commit struct {
	Header Header
	Record *Record
}

func (h Header) clone() Header {
	c := h
	if h.Proceeds != nil {
		c.Proceeds = h.Proceeds.Clone()
	} else {
		c.Proceeds = new(uint256.Int)
	}
	return c
}

func (r *Record) clone() *Record {
	c := *r
	return &c
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		Header:  s.Header.clone(),
		Records: make(map[common.Address]*Record, len(s.Records)),
	}
	for a, r := range s.Records {
		c.Records[a] = r.clone()
	}
	return c
}

// apply folds a commit into s.
func (s *State) apply(c Commit) {
	s.Header = c.Header.clone()
	if c.Record != nil {
		s.Records[c.Record.Address] = c.Record.clone()
	}
}
