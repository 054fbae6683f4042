package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Mohsinsiddi/w3mint/internal/config"
	"github.com/Mohsinsiddi/w3mint/internal/merkle"
	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/Mohsinsiddi/w3mint/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var (
	mintWallet   string
	mintProof    string
	mintProofs   string
	mintQuantity uint64
	mintValue    string
	mintValueWei string
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Request tokens from the sale",
	Long: `Request tokens from the sale. The request is signed by the chosen wallet
and admitted only if every check passes: sale not paused, phase reached,
allowlist membership, quota, supply and payment.

  w3mint mint early   --proofs og.txt.proofs.json
  w3mint mint general --proofs wl.txt.proofs.json --quantity 3 --value 0.06
  w3mint mint open    --quantity 5 --value 0.1
  w3mint mint grant   0xRecipient…            (authority only)`,
}

var mintEarlyCmd = &cobra.Command{
	Use:   "early",
	Short: "Claim the free early token (early allowlist)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMint(cmd, sale.KindEarly, common.Address{})
	},
}

var mintGeneralCmd = &cobra.Command{
	Use:   "general",
	Short: "Buy tokens in the general phase (general allowlist)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMint(cmd, sale.KindGeneral, common.Address{})
	},
}

var mintOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Buy tokens in the open phase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMint(cmd, sale.KindOpen, common.Address{})
	},
}

var mintGrantCmd = &cobra.Command{
	Use:   "grant <recipient>",
	Short: "Issue one free token to any address (authority only)",
	Long: `Issue one free token to any address. Grants ignore the pause flag and
the phase, but still count against the supply cap.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		return runMint(cmd, sale.KindAuthority, to)
	},
}

// paymentFlag returns the attached payment, or nil when none was given.
func paymentFlag(ether, wei string) (*uint256.Int, error) {
	switch {
	case ether != "" && wei != "":
		return nil, errors.New("give --value or --value-wei, not both")
	case ether != "":
		v, err := config.ParseEther(ether)
		if err != nil {
			return nil, fmt.Errorf("--value: %w", err)
		}
		return v, nil
	case wei != "":
		v, err := config.ParseWei(wei)
		if err != nil {
			return nil, fmt.Errorf("--value-wei: %w", err)
		}
		return v, nil
	}
	return nil, nil
}

// proofFlag returns the caller's proof from --proof, or by looking the caller
// up in a --proofs file. No flag means an empty proof, which only verifies
// against a single-member allowlist.
func proofFlag(caller common.Address, proof, proofsPath string) ([]common.Hash, error) {
	switch {
	case proof != "" && proofsPath != "":
		return nil, errors.New("give --proof or --proofs, not both")
	case proof != "":
		return merkle.ParseProof(proof)
	case proofsPath != "":
		pf, err := merkle.LoadProofsFile(proofsPath)
		if err != nil {
			return nil, err
		}
		return pf.Lookup(caller)
	}
	return nil, nil
}

// mintRequest is what a mint command asks the engine for. It travels inside
// the signed message and is parsed back out of it before it runs.
type mintRequest struct {
	kind     sale.MintKind
	quantity uint64
	paid     *uint256.Int
	to       common.Address // grants only
}

// signArgs encodes r as "<kind>:<quantity>:<wei>[:<recipient>]".
func (r mintRequest) signArgs() []string {
	value := "0"
	if r.paid != nil {
		value = r.paid.Dec()
	}
	args := []string{string(r.kind), strconv.FormatUint(r.quantity, 10), value}
	if r.kind == sale.KindAuthority {
		args = append(args, r.to.Hex())
	}
	return args
}

// signedMint recovers the caller of a "mint" authorization and decodes the
// request it was signed for.
func signedMint(auth *wallet.Authorization) (common.Address, mintRequest, error) {
	var req mintRequest
	args := auth.Args()
	if len(args) < 3 {
		return common.Address{}, req, fmt.Errorf("%w: mint needs kind, quantity and value", wallet.ErrRequestMismatch)
	}

	req.kind = sale.MintKind(args[0])
	switch req.kind {
	case sale.KindEarly, sale.KindGeneral, sale.KindOpen:
	case sale.KindAuthority:
		if len(args) != 4 || !common.IsHexAddress(args[3]) {
			return common.Address{}, req, fmt.Errorf("%w: grant needs a recipient", wallet.ErrRequestMismatch)
		}
		req.to = common.HexToAddress(args[3])
	default:
		return common.Address{}, req, fmt.Errorf("%w: unknown mint kind %q", wallet.ErrRequestMismatch, args[0])
	}

	qty, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return common.Address{}, req, fmt.Errorf("%w: quantity %q", wallet.ErrRequestMismatch, args[1])
	}
	req.quantity = qty
	if req.paid, err = uint256.FromDecimal(args[2]); err != nil {
		return common.Address{}, req, fmt.Errorf("%w: value %q", wallet.ErrRequestMismatch, args[2])
	}

	// The decoded request must encode back to exactly what was signed.
	caller, err := auth.Verify("mint", req.signArgs()...)
	if err != nil {
		return common.Address{}, req, err
	}
	return caller, req, nil
}

func runMint(cmd *cobra.Command, kind sale.MintKind, to common.Address) error {
	paid, err := paymentFlag(mintValue, mintValueWei)
	if err != nil {
		return err
	}
	qty := mintQuantity
	if kind == sale.KindEarly || kind == sale.KindAuthority {
		qty = 1
	}

	auth, err := signRequest(mintWallet, "mint", mintRequest{kind: kind, quantity: qty, paid: paid, to: to}.signArgs()...)
	if err != nil {
		return err
	}
	caller, req, err := signedMint(auth)
	if err != nil {
		return err
	}

	var proof []common.Hash
	if req.kind == sale.KindEarly || req.kind == sale.KindGeneral {
		if proof, err = proofFlag(caller, mintProof, mintProofs); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	return withEngine(ctx, func(e *sale.Engine) error {
		var r *sale.Receipt
		switch req.kind {
		case sale.KindEarly:
			r, err = e.EarlyMint(ctx, caller, proof)
		case sale.KindGeneral:
			r, err = e.GeneralMint(ctx, caller, proof, req.quantity, req.paid)
		case sale.KindOpen:
			r, err = e.OpenMint(ctx, caller, req.quantity, req.paid)
		case sale.KindAuthority:
			r, err = e.AuthorityMint(ctx, caller, req.to)
		}
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Mint Admitted", receiptPairs(r)))
		return nil
	})
}

func init() {
	f := mintCmd.PersistentFlags()
	f.StringVarP(&mintWallet, "wallet", "w", "", "wallet that signs the request (default: the default wallet)")

	for _, c := range []*cobra.Command{mintEarlyCmd, mintGeneralCmd} {
		c.Flags().StringVar(&mintProof, "proof", "", "comma-separated Merkle proof")
		c.Flags().StringVar(&mintProofs, "proofs", "", "proofs file from 'w3mint commitment build'")
		c.MarkFlagsMutuallyExclusive("proof", "proofs")
	}
	for _, c := range []*cobra.Command{mintGeneralCmd, mintOpenCmd} {
		c.Flags().Uint64VarP(&mintQuantity, "quantity", "n", 1, "number of tokens")
		c.Flags().StringVar(&mintValue, "value", "", "payment in ether")
		c.Flags().StringVar(&mintValueWei, "value-wei", "", "payment in wei")
		c.MarkFlagsMutuallyExclusive("value", "value-wei")
	}

	mintCmd.AddCommand(mintEarlyCmd, mintGeneralCmd, mintOpenCmd, mintGrantCmd)
}
