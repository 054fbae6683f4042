// Package fixtures holds allowlists, a sale definition and well-known dev
// accounts shared by the integration and end-to-end tests.
package fixtures

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// Account is a dev account with a published private key. Never fund these.
type Account struct {
	Name    string
	Key     string
	Address common.Address
}

// Hardhat's default accounts 0 to 5. Authority is the sale authority; Alice
// and Carol are on og.txt, Bob and Dave on wl.yaml, Erin on neither.
var (
	Authority = Account{"authority", "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")}
	Alice     = Account{"alice", "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d", common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")}
	Bob       = Account{"bob", "0x5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a", common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")}
	Carol     = Account{"carol", "0x7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6", common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")}
	Dave      = Account{"dave", "0x47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a", common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")}
	Erin      = Account{"erin", "0x8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba", common.HexToAddress("0x9965507D1a55bcC2695C58ba16FB37d819B0A4dc")}
)

// Accounts lists every fixture account.
var Accounts = []Account{Authority, Alice, Bob, Carol, Dave, Erin}

// fixturesDir returns the absolute path to the fixtures directory.
func fixturesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}

// Path returns the absolute path of a fixture file.
func Path(name string) string {
	return filepath.Join(fixturesDir(), "data", name)
}

// CopyTo copies fixture files into dir and returns dir. Tests that write
// proofs next to an allowlist use it to keep the fixtures pristine.
func CopyTo(t *testing.T, dir string, names ...string) string {
	t.Helper()
	for _, name := range names {
		data, err := os.ReadFile(Path(name))
		require.NoError(t, err, "failed to load fixture: %s", name)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	return dir
}
