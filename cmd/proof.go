package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/w3mint/internal/merkle"
	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var proofCmd = &cobra.Command{
	Use:   "proof <allowlist> <address>",
	Short: "Print one member's Merkle proof",
	Long: `Print the Merkle proof for one allowlist member in the form accepted by
'w3mint mint --proof'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		addrs, err := merkle.LoadAllowlist(args[0])
		if err != nil {
			return err
		}
		tree, err := merkle.NewTree(addrs)
		if err != nil {
			return err
		}
		proof, err := tree.Proof(addr)
		if err != nil {
			return err
		}

		fmt.Println(ui.KeyValueBlock("Merkle Proof", [][2]string{
			{"Address", ui.Addr(addr.Hex())},
			{"Leaf", merkle.Leaf(addr).Hex()},
			{"Root", ui.Addr(tree.Root().Hex())},
			{"Depth", ui.Val(fmt.Sprint(len(proof)))},
		}))
		fmt.Println(merkle.FormatProof(proof))
		return nil
	},
}

var leafCmd = &cobra.Command{
	Use:   "leaf <address>",
	Short: "Print the Merkle leaf of an address",
	Long: `Print the allowlist leaf of an address: the Keccak-256 hash of its 20
raw bytes. Useful to check an allowlist built by another tool.

Examples:
  w3mint leaf 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Allowlist Leaf", [][2]string{
			{"Address", ui.Addr(addr.Hex())},
			{"Keccak-256", ui.Val(merkle.Leaf(addr).Hex())},
		}))
		return nil
	},
}

// parseAddress accepts a hex address in any case.
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not an address", s)
	}
	return common.HexToAddress(s), nil
}
