package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Mohsinsiddi/w3mint/internal/config"
	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/Mohsinsiddi/w3mint/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

var errNotConfigured = errors.New("no sale configured, run `w3mint init` first")

// openStore opens the state store selected by the config backend.
func openStore(ctx context.Context, c *config.Config) (sale.Store, error) {
	switch c.Backend {
	case config.BackendSQLite:
		return sale.OpenSQLiteStore(ctx, c.StatePath())
	case config.BackendJSON, "":
		return sale.NewJSONStore(c.StatePath()), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// withEngine opens the configured sale, runs fn and closes the store.
func withEngine(ctx context.Context, fn func(e *sale.Engine) error) error {
	if !cfg.Configured() {
		return errNotConfigured
	}
	params, err := cfg.Sale.Params()
	if err != nil {
		return err
	}
	return runEngine(ctx, params, fn)
}

// checkResumable reports whether the stored sale state fits params, so a
// redefined sale never starts above its own limits.
func checkResumable(ctx context.Context, params sale.Params) error {
	return runEngine(ctx, params, func(*sale.Engine) error { return nil })
}

func runEngine(ctx context.Context, params sale.Params, fn func(e *sale.Engine) error) error {
	// --backend applies to this invocation only.
	c := *cfg
	if backendFlag != "" {
		if err := c.SetBackend(backendFlag); err != nil {
			return err
		}
	}
	store, err := openStore(ctx, &c)
	if err != nil {
		return fmt.Errorf("opening %s state: %w", c.Backend, err)
	}
	defer store.Close()

	e, err := sale.New(ctx, params, sale.WithStore(store))
	if err != nil {
		return err
	}
	return fn(e)
}

// newWalletManager creates a Manager backed by the config-dir JSON store and
// the OS keychain.
func newWalletManager() *wallet.Manager {
	return wallet.NewManager(
		wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())),
		wallet.WithKeystore(wallet.DefaultKeystore(cfg.Dir())),
	)
}

// walletTypeLabel converts an internal wallet type to a user-friendly label.
func walletTypeLabel(t string) string {
	switch t {
	case wallet.TypeSigning:
		return "signing"
	default:
		return t
	}
}

// resolveWalletName picks the wallet to act as: the --wallet flag, then the
// configured default, then the manager's default, then an interactive picker
// over the signing wallets.
func resolveWalletName(mgr *wallet.Manager, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.DefaultWallet != "" {
		return cfg.DefaultWallet, nil
	}
	if w := mgr.Default(); w != nil {
		return w.Name, nil
	}

	var items []ui.PickerItem
	for _, w := range mgr.List() {
		if w.CanSign() {
			items = append(items, ui.PickerItem{Label: w.Name, SubLabel: ui.TruncateAddr(w.Address), Value: w.Name})
		}
	}
	if len(items) == 0 {
		return "", errors.New("no signing wallet, add one with `w3mint wallet add <name> --key <private-key>`")
	}
	if !interactive() {
		return "", errors.New("no default wallet, pass --wallet or run `w3mint wallet use <name>`")
	}
	name, err := ui.PickItem("Act as wallet", items)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", errors.New("cancelled")
	}
	return name, nil
}

// loadSigningWallet loads a wallet by name and verifies it can sign.
func loadSigningWallet(mgr *wallet.Manager, name string) (*wallet.Wallet, error) {
	w, err := mgr.Get(name)
	if err != nil {
		return nil, fmt.Errorf("wallet %q not found, run `w3mint wallet list`", name)
	}
	if !w.CanSign() {
		return nil, fmt.Errorf("wallet %q is watch-only and cannot sign\n  To add a signing wallet: w3mint wallet add <name> --key <private-key>", name)
	}
	return w, nil
}

// signRequest signs action and args with the chosen wallet.
func signRequest(walletFlag, action string, args ...string) (*wallet.Authorization, error) {
	mgr := newWalletManager()
	name, err := resolveWalletName(mgr, walletFlag)
	if err != nil {
		return nil, err
	}
	w, err := loadSigningWallet(mgr, name)
	if err != nil {
		return nil, err
	}
	auth, err := wallet.NewSigner(w, mgr.Keystore()).Authorize(action, args...)
	if err != nil {
		return nil, fmt.Errorf("signing %s request: %w", action, err)
	}
	log.Debug("Signed request", "wallet", w.Name, "action", action, "args", args)
	return auth, nil
}

// authorize signs the request with the chosen wallet and returns the address
// recovered from the signature, once the signed action and args are checked
// against the ones about to run. The engine only ever sees that address.
func authorize(walletFlag, action string, args ...string) (common.Address, error) {
	auth, err := signRequest(walletFlag, action, args...)
	if err != nil {
		return common.Address{}, err
	}
	return auth.Verify(action, args...)
}

// receiptPairs renders a mint receipt for ui.KeyValueBlock.
func receiptPairs(r *sale.Receipt) [][2]string {
	tokens := "#" + strconv.FormatUint(r.FirstToken, 10)
	if r.LastToken != r.FirstToken {
		tokens += " … #" + strconv.FormatUint(r.LastToken, 10)
	}
	pairs := [][2]string{
		{"Receipt", ui.Meta(r.ID)},
		{"Kind", string(r.Kind)},
		{"Phase", ui.PhaseName(r.Phase.String())},
		{"To", ui.Addr(r.To.Hex())},
		{"Quantity", ui.Val(strconv.FormatUint(r.Quantity, 10))},
		{"Tokens", ui.Val(tokens)},
		{"Charged", ui.Val(config.FormatEther(r.Charged) + " ETH")},
	}
	if r.Refund != nil && !r.Refund.IsZero() {
		pairs = append(pairs, [2]string{"Refund", ui.Val(config.FormatEther(r.Refund) + " ETH")})
	}
	return pairs
}
