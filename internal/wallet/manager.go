package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet types.
const (
	TypeWatchOnly = "watch-only"
	TypeSigning   = "signing"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrWalletExists   = errors.New("wallet already exists")
	ErrInvalidKey     = errors.New("invalid private key")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidName    = errors.New("wallet names are 1-32 letters, digits, '-' or '_'")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// Wallet is a named address. Signing wallets also reference a private key in
// the keystore and can authorize sale actions.
type Wallet struct {
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Type      string    `json:"type"`
	KeyRef    string    `json:"key_ref,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// Addr returns the wallet address.
func (w *Wallet) Addr() common.Address {
	return common.HexToAddress(w.Address)
}

// CanSign reports whether the wallet holds a private key.
func (w *Wallet) CanSign() bool {
	return w.Type == TypeSigning
}

// Store persists the wallet registry.
type Store interface {
	Load() ([]*Wallet, error)
	Save([]*Wallet) error
}

// Manager is the wallet registry. It loads lazily from its Store and writes
// back on every change.
type Manager struct {
	store    Store
	keystore KeystoreBackend
	byName   map[string]*Wallet
	loadErr  error
	loaded   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithInMemoryStore keeps wallets and keys in memory.
func WithInMemoryStore() Option {
	return func(m *Manager) {
		m.store = &memStore{}
		m.keystore = NewInMemoryKeystore()
	}
}

// WithStore sets where the registry is persisted.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithKeystore sets where signing keys are kept.
func WithKeystore(ks KeystoreBackend) Option {
	return func(m *Manager) { m.keystore = ks }
}

// NewManager creates a wallet manager. Without options everything lives in
// memory.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		byName:   make(map[string]*Wallet),
		store:    &memStore{},
		keystore: NewInMemoryKeystore(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Keystore returns the keystore signing wallets use.
func (m *Manager) Keystore() KeystoreBackend {
	return m.keystore
}

// Add registers a watch-only wallet, or a pre-built one when w.Type is set.
func (m *Manager) Add(name string, w *Wallet) error {
	if err := m.claim(name); err != nil {
		return err
	}
	if !common.IsHexAddress(w.Address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, w.Address)
	}
	w.Name = name
	w.Address = common.HexToAddress(w.Address).Hex()
	if w.Type == "" {
		w.Type = TypeWatchOnly
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	m.byName[name] = w
	return m.persist()
}

// AddWithKey stores hexKey in the keystore and registers the signing wallet
// for the address it controls.
func (m *Manager) AddWithKey(name, hexKey string) (*Wallet, error) {
	if err := m.claim(name); err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(normaliseHexKey(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	ref, err := m.keystore.Store(name, hexKey)
	if err != nil {
		return nil, fmt.Errorf("storing key: %w", err)
	}

	w := &Wallet{
		Name:      name,
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Type:      TypeSigning,
		KeyRef:    ref,
		CreatedAt: time.Now().UTC(),
	}
	m.byName[name] = w
	return w, m.persist()
}

// Generate creates a signing wallet from a fresh key and returns the key,
// 0x-prefixed, so it can be backed up.
func (m *Manager) Generate(name string) (*Wallet, string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, "", fmt.Errorf("generating key: %w", err)
	}
	hexKey := hexutil.Encode(crypto.FromECDSA(key))
	w, err := m.AddWithKey(name, hexKey)
	if err != nil {
		return nil, "", err
	}
	return w, hexKey, nil
}

// ExportKey returns the 0x-prefixed private key of a signing wallet.
func (m *Manager) ExportKey(name string) (string, error) {
	w, err := m.Get(name)
	if err != nil {
		return "", err
	}
	if !w.CanSign() {
		return "", fmt.Errorf("wallet %q is watch-only and has no key", name)
	}
	key, err := m.keystore.Retrieve(w.KeyRef)
	if err != nil {
		return "", fmt.Errorf("retrieving key: %w", err)
	}
	return "0x" + normaliseHexKey(key), nil
}

// Get returns a wallet by name.
func (m *Manager) Get(name string) (*Wallet, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	w, ok := m.byName[name]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

// Lookup finds the wallet for addr. A signing wallet wins over watch-only
// entries for the same address, then the first name in order.
func (m *Manager) Lookup(addr common.Address) (*Wallet, bool) {
	var found *Wallet
	for _, w := range m.List() {
		if w.Addr() != addr {
			continue
		}
		if found == nil || (w.CanSign() && !found.CanSign()) {
			found = w
		}
	}
	return found, found != nil
}

// Remove deletes a wallet and its stored key.
func (m *Manager) Remove(name string) error {
	w, err := m.Get(name)
	if err != nil {
		return err
	}
	if w.KeyRef != "" {
		if err := m.keystore.Delete(w.KeyRef); err != nil {
			return fmt.Errorf("deleting key: %w", err)
		}
	}
	delete(m.byName, name)
	return m.persist()
}

// List returns all wallets sorted by name. A registry that fails to load
// lists as empty; Get and the mutators report the error.
func (m *Manager) List() []*Wallet {
	if m.load() != nil {
		return nil
	}
	out := make([]*Wallet, 0, len(m.byName))
	for _, w := range m.byName {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetDefault marks a wallet as the default.
func (m *Manager) SetDefault(name string) error {
	if _, err := m.Get(name); err != nil {
		return err
	}
	for _, w := range m.byName {
		w.IsDefault = w.Name == name
	}
	return m.persist()
}

// Default returns the default wallet, the only wallet when there is just
// one, or nil.
func (m *Manager) Default() *Wallet {
	all := m.List()
	for _, w := range all {
		if w.IsDefault {
			return w
		}
	}
	if len(all) == 1 {
		return all[0]
	}
	return nil
}

// claim checks that name is valid and free.
func (m *Manager) claim(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := m.load(); err != nil {
		return err
	}
	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("%w: %q", ErrWalletExists, name)
	}
	return nil
}

func (m *Manager) load() error {
	if m.loaded {
		return m.loadErr
	}
	m.loaded = true
	wallets, err := m.store.Load()
	if err != nil {
		m.loadErr = err
		return err
	}
	for _, w := range wallets {
		m.byName[w.Name] = w
	}
	return nil
}

func (m *Manager) persist() error {
	return m.store.Save(m.List())
}

type memStore struct {
	wallets []*Wallet
}

func (s *memStore) Load() ([]*Wallet, error) { return s.wallets, nil }

func (s *memStore) Save(wallets []*Wallet) error {
	s.wallets = wallets
	return nil
}

// JSONStore persists the registry to a JSON file. It holds addresses and
// keystore references only, never keys.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed wallet store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the registry. A missing file is an empty registry.
func (s *JSONStore) Load() ([]*Wallet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var wallets []*Wallet
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return wallets, nil
}

// Save replaces the registry file atomically.
func (s *JSONStore) Save(wallets []*Wallet) error {
	data, err := json.MarshalIndent(wallets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
