package merkle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrInvalidProof is returned when a proof element is not a 32-byte hex value.
var ErrInvalidProof = errors.New("merkle: invalid proof element")

// ProofsFile is the structure of a proofs.json file written next to a
// published commitment, so minters can look up their own path.
type ProofsFile struct {
	Root   common.Hash                      `json:"root"`
	Proofs map[common.Address][]common.Hash `json:"proofs"`
}

// NewProofsFile collects the root and every member's proof from t.
func NewProofsFile(t *Tree, addrs []common.Address) (*ProofsFile, error) {
	proofs, err := t.Proofs(addrs)
	if err != nil {
		return nil, err
	}
	return &ProofsFile{Root: t.Root(), Proofs: proofs}, nil
}

// LoadProofsFile reads a proofs file from path.
func LoadProofsFile(path string) (*ProofsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading proofs: %w", err)
	}
	var pf ProofsFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing proofs: %w", err)
	}
	return &pf, nil
}

// Save writes the proofs file to path.
func (pf *ProofsFile) Save(path string) error {
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Lookup returns the proof stored for addr.
func (pf *ProofsFile) Lookup(addr common.Address) ([]common.Hash, error) {
	p, ok := pf.Proofs[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInTree, addr.Hex())
	}
	return p, nil
}

// ParseProof parses a comma-separated list of 0x-prefixed 32-byte hashes.
// An empty string is an empty proof (valid for a single-member tree).
func ParseProof(s string) ([]common.Hash, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	proof := make([]common.Hash, 0, len(parts))
	for i, p := range parts {
		b, err := hexutil.Decode(strings.TrimSpace(p))
		if err != nil || len(b) != common.HashLength {
			return nil, fmt.Errorf("%w at position %d: %q", ErrInvalidProof, i+1, p)
		}
		proof = append(proof, common.BytesToHash(b))
	}
	return proof, nil
}

// FormatProof renders a proof in the form accepted by ParseProof.
func FormatProof(proof []common.Hash) string {
	parts := make([]string, len(proof))
	for i, h := range proof {
		parts[i] = h.Hex()
	}
	return strings.Join(parts, ",")
}
