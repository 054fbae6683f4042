package cmd

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mohsinsiddi/w3mint/internal/config"
	"github.com/Mohsinsiddi/w3mint/internal/merkle"
	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/Mohsinsiddi/w3mint/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	authorityKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	authorityAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func members(n int) []common.Address {
	out := make([]common.Address, n)
	for i := range out {
		out[i] = common.BigToAddress(big.NewInt(int64(0x1000 + i)))
	}
	return out
}

// useTempConfig points the package-level config at a fresh directory with a
// small sale defined, and forces the file keyring.
func useTempConfig(t *testing.T, backend string) {
	t.Helper()
	t.Setenv(wallet.EnvKeyringBackend, "file")
	t.Setenv(wallet.EnvKeyringPassword, "test-password")
	t.Setenv(wallet.EnvKey, "")

	c, err := config.Load(t.TempDir())
	require.NoError(t, err)
	c.Sale.Authority = authorityAddr
	c.Sale.MaxSupply = 105
	c.Sale.EarlyCap = 4
	c.Sale.MaxPerRequest = 5
	c.Sale.UnitPriceWei = "20000000000000000"
	require.NoError(t, c.SetBackend(backend))
	require.NoError(t, c.Save())

	prev, prevBackend := cfg, backendFlag
	cfg, backendFlag = c, ""
	t.Cleanup(func() { cfg, backendFlag = prev, prevBackend })
}

// ---------------------------------------------------------------------------
// flags
// ---------------------------------------------------------------------------

func TestPaymentFlag(t *testing.T) {
	v, err := paymentFlag("", "")
	require.NoError(t, err)
	assert.Nil(t, v, "no flag is no payment")

	v, err = paymentFlag("0.02", "")
	require.NoError(t, err)
	assert.Equal(t, "20000000000000000", v.Dec())

	v, err = paymentFlag("", "123")
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(123), v)

	_, err = paymentFlag("1", "1")
	assert.Error(t, err)
	_, err = paymentFlag("abc", "")
	assert.Error(t, err)
	_, err = paymentFlag("", "-1")
	assert.Error(t, err)
}

func TestProofFlag(t *testing.T) {
	addrs := members(5)
	tree, err := merkle.NewTree(addrs)
	require.NoError(t, err)
	want, err := tree.Proof(addrs[2])
	require.NoError(t, err)

	got, err := proofFlag(addrs[2], merkle.FormatProof(want), "")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	pf, err := merkle.NewProofsFile(tree, addrs)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "proofs.json")
	require.NoError(t, pf.Save(path))

	got, err = proofFlag(addrs[2], "", path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = proofFlag(common.HexToAddress("0xdead"), "", path)
	assert.ErrorIs(t, err, merkle.ErrNotInTree)

	got, err = proofFlag(addrs[2], "", "")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = proofFlag(addrs[2], "0x01", path)
	assert.Error(t, err)
}

func TestCommitmentRoot(t *testing.T) {
	addrs := members(3)
	tree, err := merkle.NewTree(addrs)
	require.NoError(t, err)

	list := filepath.Join(t.TempDir(), "wl.txt")
	body := ""
	for _, a := range addrs {
		body += a.Hex() + "\n"
	}
	require.NoError(t, os.WriteFile(list, []byte(body), 0o600))

	root, err := commitmentRoot(nil, list)
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), root)

	root, err = commitmentRoot([]string{tree.Root().Hex()}, "")
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), root)

	_, err = commitmentRoot([]string{tree.Root().Hex()}, list)
	assert.Error(t, err)
	_, err = commitmentRoot(nil, "")
	assert.Error(t, err)
	_, err = commitmentRoot([]string{"0x1234"}, "")
	assert.Error(t, err)
}

func TestBuildProofsChecksEveryMember(t *testing.T) {
	addrs := members(33)
	pf, err := buildProofs(context.Background(), addrs, true)
	require.NoError(t, err)
	assert.Len(t, pf.Proofs, 33)
	for _, a := range addrs {
		assert.True(t, merkle.Verify(pf.Root, a, pf.Proofs[a]))
	}

	_, err = buildProofs(context.Background(), nil, true)
	assert.ErrorIs(t, err, merkle.ErrEmptyAllowlist)
}

func TestBuildProofsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := buildProofs(ctx, members(8), true)
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// output
// ---------------------------------------------------------------------------

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, fmt.Errorf("mint: %w", sale.ErrSupplyCapReached))
	assert.Contains(t, buf.String(), "[SUPPLY_CAP_REACHED]")

	buf.Reset()
	printError(&buf, os.ErrNotExist)
	assert.Contains(t, buf.String(), "file does not exist")
	assert.NotContains(t, buf.String(), "[")
}

func TestReceiptPairs(t *testing.T) {
	r := &sale.Receipt{
		ID: "id-1", Kind: sale.KindGeneral, Phase: sale.PhaseGeneral,
		Quantity: 3, FirstToken: 7, LastToken: 9,
		Charged: uint256.NewInt(60_000_000_000_000_000), Refund: uint256.NewInt(1),
	}
	out := fmt.Sprint(receiptPairs(r))
	assert.Contains(t, out, "#7 … #9")
	assert.Contains(t, out, "0.06 ETH")
	assert.Contains(t, out, "Refund")

	r.Refund = new(uint256.Int)
	r.LastToken = 7
	out = fmt.Sprint(receiptPairs(r))
	assert.NotContains(t, out, "Refund")
	assert.NotContains(t, out, "…")
}

func TestHoldersTableSortedByAddress(t *testing.T) {
	st := sale.Genesis()
	b, a := common.HexToAddress("0xbb"), common.HexToAddress("0xaa")
	st.Records[b] = &sale.Record{Address: b, Open: 5}
	st.Records[a] = &sale.Record{Address: a, EarlyMinted: true, General: 2}

	out := holdersTable(st, nil).Render()
	assert.Less(t, bytes.Index([]byte(out), []byte(a.Hex())), bytes.Index([]byte(out), []byte(b.Hex())))
}

func TestHoldersTableNamesWallets(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.Add("bob", &wallet.Wallet{Address: "0x00000000000000000000000000000000000000bb"}))

	st := sale.Genesis()
	b := common.HexToAddress("0xbb")
	st.Records[b] = &sale.Record{Address: b, Open: 1}

	assert.Contains(t, holdersTable(st, walletLabel(mgr)).Render(), "bob")
}

func TestQuotePairs(t *testing.T) {
	p := sale.Params{
		Limits:  sale.Limits{MaxSupply: 100, EarlyCap: 4, MaxPerRequest: 5},
		Pricing: sale.Pricing{UnitPrice: uint256.NewInt(20_000_000_000_000_000), Overpayment: sale.OverpaymentRefund},
	}

	pairs, err := quotePairs(p, sale.PhaseGeneral, 3, nil)
	require.NoError(t, err)
	out := fmt.Sprint(pairs)
	assert.Contains(t, out, "0.06 ETH")
	assert.Contains(t, out, "60000000000000000")
	assert.NotContains(t, out, "Refund")

	pairs, err = quotePairs(p, sale.PhaseOpen, 3, uint256.NewInt(100_000_000_000_000_000))
	require.NoError(t, err)
	out = fmt.Sprint(pairs)
	assert.Contains(t, out, "Refund")
	assert.Contains(t, out, "0.04 ETH")

	_, err = quotePairs(p, sale.PhaseOpen, 3, uint256.NewInt(1))
	assert.ErrorIs(t, err, sale.ErrInsufficientFunds)

	pairs, err = quotePairs(p, sale.PhaseEarly, 1, nil)
	require.NoError(t, err)
	assert.Contains(t, fmt.Sprint(pairs), "0 ETH")
}

// ---------------------------------------------------------------------------
// engine wiring
// ---------------------------------------------------------------------------

func TestWithEngineRequiresConfiguredSale(t *testing.T) {
	useTempConfig(t, config.BackendJSON)
	cfg.Sale.Authority = ""
	err := withEngine(context.Background(), func(*sale.Engine) error { return nil })
	assert.ErrorIs(t, err, errNotConfigured)
}

func TestWithEnginePersistsAcrossInvocations(t *testing.T) {
	for _, backend := range []string{config.BackendJSON, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			useTempConfig(t, backend)
			ctx := context.Background()
			authority := common.HexToAddress(authorityAddr)
			buyer := common.HexToAddress("0xb0b")

			require.NoError(t, withEngine(ctx, func(e *sale.Engine) error {
				if err := e.Unpause(ctx, authority); err != nil {
					return err
				}
				if err := e.AdvancePhase(ctx, authority, sale.PhaseOpen); err != nil {
					return err
				}
				_, err := e.OpenMint(ctx, buyer, 2, uint256.NewInt(40_000_000_000_000_000))
				return err
			}))
			assert.FileExists(t, cfg.StatePath())

			require.NoError(t, withEngine(ctx, func(e *sale.Engine) error {
				assert.Equal(t, sale.StatusOpen, e.Status())
				rec, ok := e.Record(buyer)
				assert.True(t, ok)
				assert.Equal(t, uint64(2), rec.Open)
				assert.Equal(t, "0.04", config.FormatEther(e.Header().Proceeds))
				return nil
			}))
		})
	}
}

func TestWithEngineBackendOverride(t *testing.T) {
	useTempConfig(t, config.BackendJSON)
	backendFlag = "sqlite"
	require.NoError(t, withEngine(context.Background(), func(e *sale.Engine) error { return nil }))
	assert.FileExists(t, filepath.Join(cfg.Dir(), "sale.db"))
	assert.Equal(t, config.BackendJSON, cfg.Backend, "the override is not persisted")

	backendFlag = "postgres"
	assert.Error(t, withEngine(context.Background(), func(e *sale.Engine) error { return nil }))
}

func TestCheckResumableRejectsLimitsBelowStoredState(t *testing.T) {
	useTempConfig(t, config.BackendSQLite)
	ctx := context.Background()
	authority := common.HexToAddress(authorityAddr)
	require.NoError(t, withEngine(ctx, func(e *sale.Engine) error {
		if _, err := e.AuthorityMint(ctx, authority, common.HexToAddress("0xb0b")); err != nil {
			return err
		}
		_, err := e.AuthorityMint(ctx, authority, common.HexToAddress("0xca7"))
		return err
	}))

	params, err := cfg.Sale.Params()
	require.NoError(t, err)
	require.NoError(t, checkResumable(ctx, params))

	params.Limits.MaxSupply = 1
	params.Limits.EarlyCap = 1
	assert.ErrorIs(t, checkResumable(ctx, params), sale.ErrInvalidParams)
}

func TestAuthorizeRecoversSigner(t *testing.T) {
	useTempConfig(t, config.BackendJSON)
	mgr := newWalletManager()
	_, err := mgr.AddWithKey("authority", authorityKey)
	require.NoError(t, err)
	require.NoError(t, mgr.Add("watcher", &wallet.Wallet{Address: "0x00000000000000000000000000000000000000cc"}))

	caller, err := authorize("authority", "pause")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(authorityAddr), caller)

	_, err = authorize("watcher", "pause")
	assert.ErrorContains(t, err, "watch-only")

	_, err = authorize("ghost", "pause")
	assert.ErrorContains(t, err, "not found")

	cfg.DefaultWallet = "authority"
	caller, err = authorize("", "pause")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(authorityAddr), caller)
}

func TestAuthorizeChecksSignedAction(t *testing.T) {
	useTempConfig(t, config.BackendJSON)
	_, err := newWalletManager().AddWithKey("authority", authorityKey)
	require.NoError(t, err)

	auth, err := signRequest("authority", "advance", "general")
	require.NoError(t, err)
	_, err = auth.Verify("advance", "open")
	assert.ErrorIs(t, err, wallet.ErrRequestMismatch)
	_, err = auth.Verify("pause")
	assert.ErrorIs(t, err, wallet.ErrRequestMismatch)

	caller, err := authorize("authority", "advance", "open")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(authorityAddr), caller)
}

func TestSignedMintRunsTheSignedRequest(t *testing.T) {
	useTempConfig(t, config.BackendJSON)
	_, err := newWalletManager().AddWithKey("authority", authorityKey)
	require.NoError(t, err)
	recipient := common.HexToAddress("0xb0b")

	tests := []mintRequest{
		{kind: sale.KindEarly, quantity: 1},
		{kind: sale.KindGeneral, quantity: 3, paid: uint256.NewInt(60_000_000_000_000_000)},
		{kind: sale.KindOpen, quantity: 2, paid: uint256.NewInt(7)},
		{kind: sale.KindAuthority, quantity: 1, to: recipient},
	}
	for _, want := range tests {
		t.Run(string(want.kind), func(t *testing.T) {
			auth, err := signRequest("authority", "mint", want.signArgs()...)
			require.NoError(t, err)

			caller, got, err := signedMint(auth)
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(authorityAddr), caller)
			assert.Equal(t, want.kind, got.kind)
			assert.Equal(t, want.quantity, got.quantity)
			assert.Equal(t, want.to, got.to)
			if want.paid == nil {
				assert.True(t, got.paid.IsZero())
			} else {
				assert.Equal(t, want.paid, got.paid)
			}
		})
	}
}

func TestSignedMintRejectsMismatchedAuthorization(t *testing.T) {
	useTempConfig(t, config.BackendJSON)
	_, err := newWalletManager().AddWithKey("authority", authorityKey)
	require.NoError(t, err)

	rejected := map[string][]string{
		"other action":      nil,
		"missing value":     {"open", "2"},
		"unknown kind":      {"airdrop", "1", "0"},
		"bad quantity":      {"open", "two", "0"},
		"negative value":    {"open", "1", "-5"},
		"padded quantity":   {"open", "02", "0"},
		"grant without to":  {"authority", "1", "0"},
		"extra field":       {"open", "1", "0", "0xb0b"},
		"grant bad address": {"authority", "1", "0", "nobody"},
	}
	for name, args := range rejected {
		t.Run(name, func(t *testing.T) {
			action := "mint"
			if args == nil {
				action = "pause"
			}
			auth, err := signRequest("authority", action, args...)
			require.NoError(t, err)
			_, _, err = signedMint(auth)
			assert.ErrorIs(t, err, wallet.ErrRequestMismatch)
		})
	}

	t.Run("altered after signing", func(t *testing.T) {
		auth, err := signRequest("authority", "mint", "open", "1", "20000000000000000")
		require.NoError(t, err)
		auth.Message = bytes.Replace(auth.Message, []byte(":open:1:"), []byte(":open:5:"), 1)
		_, _, err = signedMint(auth)
		assert.Error(t, err)
	})
}
