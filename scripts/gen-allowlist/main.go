// gen-allowlist: writes a deterministic allowlist of synthetic addresses and
// prints its Merkle root and proof depth. Handy for load-testing the sale
// with allowlists far larger than the fixtures.
//
// Run from the module root:
//
//	go run ./scripts/gen-allowlist --count 5000 --seed og --out og.txt
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/Mohsinsiddi/w3mint/internal/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ── flags ─────────────────────────────────────────────────────────────────────

var (
	count  = pflag.IntP("count", "n", 1000, "number of addresses")
	seed   = pflag.String("seed", "w3mint", "seed; the same seed always yields the same list")
	out    = pflag.StringP("out", "o", "allowlist.txt", "output file (.txt or .yaml)")
	proofs = pflag.Bool("proofs", false, "also write <out>.proofs.json")
)

// ── main ──────────────────────────────────────────────────────────────────────

func main() {
	pflag.Parse()
	if *count <= 0 {
		fail(fmt.Errorf("--count must be positive"))
	}

	addrs := generate(*seed, *count)
	if err := write(*out, addrs); err != nil {
		fail(err)
	}

	tree, err := merkle.NewTree(addrs)
	if err != nil {
		fail(err)
	}
	depth, err := tree.Proof(addrs[0])
	if err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "FILE\t%s\n", *out)
	fmt.Fprintf(w, "MEMBERS\t%d\n", tree.Len())
	fmt.Fprintf(w, "ROOT\t%s\n", tree.Root().Hex())
	fmt.Fprintf(w, "DEPTH\t%d\n", len(depth))

	if *proofs {
		pf, err := merkle.NewProofsFile(tree, addrs)
		if err != nil {
			fail(err)
		}
		path := *out + ".proofs.json"
		if err := pf.Save(path); err != nil {
			fail(err)
		}
		fmt.Fprintf(w, "PROOFS\t%s\n", path)
	}
	w.Flush()
}

// ── generation ────────────────────────────────────────────────────────────────

// generate derives address i as the low 20 bytes of keccak(seed || i).
func generate(seed string, n int) []common.Address {
	addrs := make([]common.Address, n)
	buf := make([]byte, len(seed)+8)
	copy(buf, seed)
	for i := range addrs {
		binary.BigEndian.PutUint64(buf[len(seed):], uint64(i))
		addrs[i] = common.BytesToAddress(crypto.Keccak256(buf))
	}
	return addrs
}

func write(path string, addrs []common.Address) error {
	hexes := make([]string, len(addrs))
	for i, a := range addrs {
		hexes[i] = a.Hex()
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var err error
		data, err = yaml.Marshal(struct {
			Addresses []string `yaml:"addresses"`
		}{hexes})
		if err != nil {
			return err
		}
	default:
		data = []byte("# generated by gen-allowlist, seed " + *seed + "\n" + strings.Join(hexes, "\n") + "\n")
	}
	return os.WriteFile(path, data, 0o644)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "gen-allowlist:", err)
	os.Exit(1)
}
