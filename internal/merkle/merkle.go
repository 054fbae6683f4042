// Package merkle builds and verifies keccak-256 Merkle commitments over
// address allowlists.
//
// Nodes are combined as keccak256(min(a,b) || max(a,b)), so a proof is valid
// regardless of whether each sibling sat on the left or the right. Leaves are
// keccak256 of the raw 20 address bytes and are sorted before the tree is
// built; an odd node at the end of a layer is promoted unchanged. This is the
// layout produced by merkletreejs with `sort: true`, and the one verified by
// OpenZeppelin's MerkleProof library.
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// MaxProofLength bounds the number of siblings accepted by Verify. A tree of
// 2^64 leaves cannot exist, so anything longer is malformed.
const MaxProofLength = 64

// Errors.
var (
	ErrEmptyAllowlist   = errors.New("merkle: allowlist is empty")
	ErrDuplicateAddress = errors.New("merkle: duplicate address")
	ErrNotInTree        = errors.New("merkle: address not in tree")
)

// Leaf returns the leaf hash committed for addr.
func Leaf(addr common.Address) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(addr.Bytes())
	return common.BytesToHash(h.Sum(nil))
}

// HashPair combines two nodes in sorted order.
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(a[:])
	h.Write(b[:])
	return common.BytesToHash(h.Sum(nil))
}

// Verify reports whether proof links addr to root. It never panics and
// fails closed: an unset (zero) root, an oversized proof or a mismatching
// root all return false.
func Verify(root common.Hash, addr common.Address, proof []common.Hash) bool {
	return VerifyLeaf(root, Leaf(addr), proof)
}

// VerifyLeaf is Verify for a precomputed leaf hash.
func VerifyLeaf(root, leaf common.Hash, proof []common.Hash) bool {
	if root == (common.Hash{}) || len(proof) > MaxProofLength {
		return false
	}
	node := leaf
	for _, sibling := range proof {
		node = HashPair(node, sibling)
	}
	return node == root
}

// Tree is an immutable Merkle tree over a set of addresses.
type Tree struct {
	layers [][]common.Hash // layers[0] are the sorted leaves, last layer is the root
	index  map[common.Hash]int
}

// NewTree builds a tree over addrs. Order of addrs does not matter.
func NewTree(addrs []common.Address) (*Tree, error) {
	if len(addrs) == 0 {
		return nil, ErrEmptyAllowlist
	}

	leaves := make([]common.Hash, 0, len(addrs))
	seen := make(map[common.Address]struct{}, len(addrs))
	for _, a := range addrs {
		if _, dup := seen[a]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAddress, a.Hex())
		}
		seen[a] = struct{}{}
		leaves = append(leaves, Leaf(a))
	}
	slices.SortFunc(leaves, func(x, y common.Hash) int { return bytes.Compare(x[:], y[:]) })

	t := &Tree{index: make(map[common.Hash]int, len(leaves))}
	for i, l := range leaves {
		t.index[l] = i
	}

	layer := leaves
	t.layers = append(t.layers, layer)
	for len(layer) > 1 {
		next := make([]common.Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, HashPair(layer[i], layer[i+1]))
		}
		layer = next
		t.layers = append(t.layers, layer)
	}
	return t, nil
}

// Root returns the commitment for the tree.
func (t *Tree) Root() common.Hash {
	return t.layers[len(t.layers)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.layers[0])
}

// Contains reports whether addr is a member of the tree.
func (t *Tree) Contains(addr common.Address) bool {
	_, ok := t.index[Leaf(addr)]
	return ok
}

// Proof returns the sibling path, leaf to root, for addr.
func (t *Tree) Proof(addr common.Address) ([]common.Hash, error) {
	idx, ok := t.index[Leaf(addr)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInTree, addr.Hex())
	}
	proof := make([]common.Hash, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		idx /= 2
	}
	return proof, nil
}

// Proofs returns proofs for every member, keyed by address.
func (t *Tree) Proofs(addrs []common.Address) (map[common.Address][]common.Hash, error) {
	out := make(map[common.Address][]common.Hash, len(addrs))
	for _, a := range addrs {
		p, err := t.Proof(a)
		if err != nil {
			return nil, err
		}
		out[a] = p
	}
	return out, nil
}
