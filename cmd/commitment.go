package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/Mohsinsiddi/w3mint/internal/merkle"
	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	commitOut       string
	commitCheck     bool
	commitAllowlist string
	commitWallet    string
)

var commitmentCmd = &cobra.Command{
	Use:     "commitment",
	Aliases: []string{"root"},
	Short:   "Build and publish allowlist commitments (Merkle roots)",
}

var commitmentBuildCmd = &cobra.Command{
	Use:   "build <allowlist>",
	Short: "Compute the Merkle root and every member's proof",
	Long: `Compute the Merkle root of an allowlist and write every member's proof
to a proofs file that buyers pass to 'w3mint mint --proofs'.

The allowlist is a text file (one address per line, # comments), a JSON
array, or YAML (a list or an "addresses:" key).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addrs, err := merkle.LoadAllowlist(args[0])
		if err != nil {
			return err
		}

		spin := ui.NewSpinner(os.Stderr, fmt.Sprintf("Building proofs for %d addresses…", len(addrs)))
		spin.Start()
		pf, err := buildProofs(cmd.Context(), addrs, commitCheck)
		spin.Stop()
		if err != nil {
			return err
		}

		out := commitOut
		if out == "" {
			out = args[0] + ".proofs.json"
		}
		if err := pf.Save(out); err != nil {
			return fmt.Errorf("writing proofs: %w", err)
		}

		pairs := [][2]string{
			{"Root", ui.Addr(pf.Root.Hex())},
			{"Members", ui.Val(fmt.Sprint(len(pf.Proofs)))},
			{"Proofs", out},
		}
		if commitCheck {
			pairs = append(pairs, [2]string{"Verified", ui.Success("every proof")})
		}
		fmt.Println(ui.KeyValueBlock("Allowlist Commitment", pairs))
		fmt.Println(ui.Hint("Publish it: w3mint commitment set <early|general> " + pf.Root.Hex()))
		return nil
	},
}

// buildProofs builds the tree for addrs and, when check is set, verifies
// every proof against the root in parallel.
func buildProofs(ctx context.Context, addrs []common.Address, check bool) (*merkle.ProofsFile, error) {
	tree, err := merkle.NewTree(addrs)
	if err != nil {
		return nil, err
	}
	pf, err := merkle.NewProofsFile(tree, addrs)
	if err != nil {
		return nil, err
	}
	if !check {
		return pf, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for addr, proof := range pf.Proofs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !merkle.Verify(pf.Root, addr, proof) {
				return fmt.Errorf("proof for %s does not verify against %s", addr.Hex(), pf.Root.Hex())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("Verified allowlist proofs", "root", pf.Root, "members", len(pf.Proofs))
	return pf, nil
}

var commitmentSetCmd = &cobra.Command{
	Use:   "set <early|general> [root]",
	Short: "Publish the allowlist root for a phase (authority only)",
	Long: `Publish the Merkle root that gates early or general mints. The root is
given directly or computed from --allowlist. Replacing a root takes effect
for the next request.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		phase, err := sale.ParsePhase(args[0])
		if err != nil {
			return err
		}
		if phase == sale.PhaseOpen {
			return fmt.Errorf("the open phase has no allowlist")
		}
		root, err := commitmentRoot(args[1:], commitAllowlist)
		if err != nil {
			return err
		}

		caller, err := authorize(commitWallet, "commitment", phase.String(), root.Hex())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		return withEngine(ctx, func(e *sale.Engine) error {
			set := e.SetEarlyCommitment
			if phase == sale.PhaseGeneral {
				set = e.SetGeneralCommitment
			}
			if err := set(ctx, caller, root); err != nil {
				return err
			}
			fmt.Println(ui.Success(fmt.Sprintf("%s allowlist root set to %s", phase, ui.Addr(root.Hex()))))
			return nil
		})
	},
}

// commitmentRoot takes the root from a positional argument or computes it
// from an allowlist file. Exactly one must be given.
func commitmentRoot(args []string, allowlist string) (common.Hash, error) {
	switch {
	case len(args) > 0 && allowlist != "":
		return common.Hash{}, fmt.Errorf("give a root or --allowlist, not both")
	case len(args) > 0:
		b, err := hexutil.Decode(args[0])
		if err != nil || len(b) != common.HashLength {
			return common.Hash{}, fmt.Errorf("root %q is not a 32-byte hex value", args[0])
		}
		return common.BytesToHash(b), nil
	case allowlist != "":
		addrs, err := merkle.LoadAllowlist(allowlist)
		if err != nil {
			return common.Hash{}, err
		}
		tree, err := merkle.NewTree(addrs)
		if err != nil {
			return common.Hash{}, err
		}
		return tree.Root(), nil
	default:
		return common.Hash{}, fmt.Errorf("give a root or --allowlist")
	}
}

var commitmentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the published allowlist roots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *sale.Engine) error {
			h := e.Header()
			fmt.Println(ui.KeyValueBlock("Allowlist Commitments", [][2]string{
				{"Early", rootLabel(h.EarlyRoot)},
				{"General", rootLabel(h.GeneralRoot)},
			}))
			return nil
		})
	},
}

func rootLabel(root common.Hash) string {
	if root == (common.Hash{}) {
		return ui.Meta("(not set, nobody is eligible)")
	}
	return ui.Addr(root.Hex())
}

func init() {
	commitmentBuildCmd.Flags().StringVarP(&commitOut, "out", "o", "", "proofs file to write (default: <allowlist>.proofs.json)")
	commitmentBuildCmd.Flags().BoolVar(&commitCheck, "check", false, "verify every proof against the root")
	commitmentSetCmd.Flags().StringVar(&commitAllowlist, "allowlist", "", "compute the root from this allowlist")
	commitmentSetCmd.Flags().StringVarP(&commitWallet, "wallet", "w", "", "authority wallet (default: the default wallet)")
	commitmentCmd.AddCommand(commitmentBuildCmd, commitmentSetCmd, commitmentShowCmd)
}
