package sale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
	"github.com/holiman/uint256"
)

// ErrStateChanged is returned by Store.Apply when the stored state is no
// longer the one the commit was built from.
var ErrStateChanged = errors.New("sale state changed since it was loaded")

// Store persists sale state. Apply must be atomic: after an error the stored
// state is exactly what it was before the call.
type Store interface {
	// Load returns the stored state, or nil if nothing has been stored yet.
	Load(ctx context.Context) (*State, error)
	// Apply stores c if c.Header.Seq is exactly one past the stored Seq and
	// returns ErrStateChanged otherwise.
	Apply(ctx context.Context, c Commit) error
	Close() error
}

// checkSeq reports whether c follows the stored sequence number.
func checkSeq(stored uint64, c Commit) error {
	if c.Header.Seq != stored+1 {
		return fmt.Errorf("%w: stored seq %d, commit seq %d", ErrStateChanged, stored, c.Header.Seq)
	}
	return nil
}

// --- in-memory store ---

type memStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemStore returns a Store that keeps state in memory only.
func NewMemStore() Store {
	return &memStore{}
}

func (s *memStore) Load(context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	return s.state.Clone(), nil
}

func (s *memStore) Apply(_ context.Context, c Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		s.state = Genesis()
	}
	if err := checkSeq(s.state.Seq, c); err != nil {
		return err
	}
	s.state.apply(c)
	return nil
}

func (s *memStore) Close() error { return nil }

// --- JSON file store ---

// lockRetry is how often a blocked Apply retries the state file lock.
const lockRetry = 10 * time.Millisecond

// JSONStore persists state to a single JSON file. Every Apply takes an
// exclusive lock on a sibling .lock file, re-reads the file and rewrites it
// through a temp file and rename, so several processes can share one path.
type JSONStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewJSONStore creates a JSON-backed state store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the backing file.
func (s *JSONStore) Path() string { return s.path }

type stateFile struct {
	EarlyRoot   common.Hash  `json:"early_root"`
	GeneralRoot common.Hash  `json:"general_root"`
	Phase       string       `json:"phase"`
	Paused      bool         `json:"paused"`
	EarlyIssued uint64       `json:"early_issued"`
	TotalSupply uint64       `json:"total_supply"`
	ProceedsWei string       `json:"proceeds_wei"`
	Seq         uint64       `json:"seq"`
	Records     []recordFile `json:"records"`
}

type recordFile struct {
	Address     common.Address `json:"address"`
	EarlyMinted bool           `json:"early_minted,omitempty"`
	General     uint64         `json:"general,omitempty"`
	Open        uint64         `json:"open,omitempty"`
	Granted     uint64         `json:"granted,omitempty"`
}

// Load reads the file. Writers replace it by rename, so no lock is needed.
func (s *JSONStore) Load(context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *JSONStore) Apply(ctx context.Context, c Commit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("locking %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("locking %s: %w", s.path, ctx.Err())
	}
	defer s.lock.Unlock() //nolint:errcheck

	next, err := s.read()
	if err != nil {
		return err
	}
	if next == nil {
		next = Genesis()
	}
	if err := checkSeq(next.Seq, c); err != nil {
		return err
	}
	next.apply(c)
	return s.write(next)
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) read() (*State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	st, err := f.decode()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return st, nil
}

func (s *JSONStore) write(st *State) error {
	data, err := json.MarshalIndent(encodeState(st), "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func encodeState(st *State) stateFile {
	f := stateFile{
		EarlyRoot:   st.EarlyRoot,
		GeneralRoot: st.GeneralRoot,
		Phase:       st.Phase.String(),
		Paused:      st.Paused,
		EarlyIssued: st.EarlyIssued,
		TotalSupply: st.TotalSupply,
		ProceedsWei: st.Proceeds.Dec(),
		Seq:         st.Seq,
		Records:     make([]recordFile, 0, len(st.Records)),
	}
	for _, r := range st.Records {
		f.Records = append(f.Records, recordFile{
			Address:     r.Address,
			EarlyMinted: r.EarlyMinted,
			General:     r.General,
			Open:        r.Open,
			Granted:     r.Granted,
		})
	}
	sort.Slice(f.Records, func(i, j int) bool {
		return f.Records[i].Address.Cmp(f.Records[j].Address) < 0
	})
	return f
}

func (f stateFile) decode() (*State, error) {
	phase, err := ParsePhase(f.Phase)
	if err != nil {
		return nil, err
	}
	proceeds := new(uint256.Int)
	if f.ProceedsWei != "" {
		if proceeds, err = uint256.FromDecimal(f.ProceedsWei); err != nil {
			return nil, fmt.Errorf("proceeds_wei: %w", err)
		}
	}
	st := &State{
		Header: Header{
			EarlyRoot:   f.EarlyRoot,
			GeneralRoot: f.GeneralRoot,
			Phase:       phase,
			Paused:      f.Paused,
			EarlyIssued: f.EarlyIssued,
			TotalSupply: f.TotalSupply,
			Proceeds:    proceeds,
			Seq:         f.Seq,
		},
		Records: make(map[common.Address]*Record, len(f.Records)),
	}
	for _, r := range f.Records {
		st.Records[r.Address] = &Record{
			Address:     r.Address,
			EarlyMinted: r.EarlyMinted,
			General:     r.General,
			Open:        r.Open,
			Granted:     r.Granted,
		}
	}
	return st, nil
}
