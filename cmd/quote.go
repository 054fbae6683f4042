package cmd

import (
	"fmt"
	"strconv"

	"github.com/Mohsinsiddi/w3mint/internal/config"
	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var (
	quoteValue    string
	quoteValueWei string
	quotePhase    string
)

var quoteCmd = &cobra.Command{
	Use:   "quote <quantity>",
	Short: "Show what a mint of <quantity> tokens costs",
	Long: `Show the price of a mint at the sale's unit price, in ETH, wei and hex.
With --value the payment is checked as a mint would check it, showing what
would be charged and refunded. Nothing is minted.

Examples:
  w3mint quote 3
  w3mint quote 3 --value 0.05
  w3mint quote 2 --phase open --value-wei 20000000000000000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || qty == 0 {
			return fmt.Errorf("%q is not a positive quantity", args[0])
		}
		paid, err := paymentFlag(quoteValue, quoteValueWei)
		if err != nil {
			return err
		}
		return withEngine(cmd.Context(), func(e *sale.Engine) error {
			phase := e.CurrentPhase()
			if quotePhase != "" {
				if phase, err = sale.ParsePhase(quotePhase); err != nil {
					return err
				}
			}
			pairs, err := quotePairs(e.Params(), phase, qty, paid)
			if err != nil {
				return err
			}
			fmt.Println(ui.KeyValueBlock("Mint Quote", pairs))
			if qty > e.Params().Limits.MaxPerRequest && phase != sale.PhaseEarly {
				fmt.Println(ui.Warn(fmt.Sprintf("A single request is limited to %d token(s).", e.Params().Limits.MaxPerRequest)))
			}
			return nil
		})
	},
}

// quotePairs prices qty tokens in phase and, when paid is set, settles the
// payment the way the engine would.
func quotePairs(p sale.Params, phase sale.Phase, qty uint64, paid *uint256.Int) ([][2]string, error) {
	cost := new(uint256.Int)
	if phase != sale.PhaseEarly {
		c, ok := sale.Cost(p.Pricing, qty)
		if !ok {
			return nil, sale.ErrInsufficientFunds
		}
		cost = c
	}
	pairs := [][2]string{
		{"Phase", ui.PhaseName(phase.String())},
		{"Quantity", ui.Val(fmt.Sprint(qty))},
		{"Cost", ui.Val(config.FormatEther(cost) + " ETH")},
		{"Wei", ui.Val(cost.Dec())},
		{"Hex", ui.Val(cost.Hex())},
	}
	if paid == nil {
		return pairs, nil
	}
	st, err := sale.ValidatePayment(qty, paid, phase, p.Pricing)
	if err != nil {
		return nil, err
	}
	return append(pairs,
		[2]string{"Paid", ui.Val(config.FormatEther(paid) + " ETH")},
		[2]string{"Charged", ui.Val(config.FormatEther(st.Charged) + " ETH")},
		[2]string{"Refund", ui.Val(config.FormatEther(st.Refund) + " ETH")},
	), nil
}

func init() {
	f := quoteCmd.Flags()
	f.StringVar(&quoteValue, "value", "", "payment in ether to check")
	f.StringVar(&quoteValueWei, "value-wei", "", "payment in wei to check")
	f.StringVar(&quotePhase, "phase", "", "price for this phase instead of the current one")
	quoteCmd.MarkFlagsMutuallyExclusive("value", "value-wei")
}
