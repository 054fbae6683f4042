package cmd

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/Mohsinsiddi/w3mint/internal/config"
	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/Mohsinsiddi/w3mint/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	controlWallet string
	phaseYes      bool
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause every public mint (authority only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(cmd, true)
	},
}

var unpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume public mints (authority only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(cmd, false)
	},
}

func setPaused(cmd *cobra.Command, paused bool) error {
	action := "unpause"
	if paused {
		action = "pause"
	}
	caller, err := authorize(controlWallet, action)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withEngine(ctx, func(e *sale.Engine) error {
		op := e.Unpause
		if paused {
			op = e.Pause
		}
		if err := op(ctx, caller); err != nil {
			return err
		}
		fmt.Println(ui.Success("Sale is " + ui.Status(string(e.Status()))))
		return nil
	})
}

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Show or advance the sale phase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *sale.Engine) error {
			fmt.Println(ui.PhaseName(e.CurrentPhase().String()))
			return nil
		})
	},
}

var phaseAdvanceCmd = &cobra.Command{
	Use:   "advance <general|open>",
	Short: "Move the sale to a later phase (authority only)",
	Long: `Move the sale to a later phase. Phases only move forward: early, then
general, then open. Going straight from early to open is allowed.

Advancing is irreversible, so it asks you to type the target phase unless
--yes is given.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"general", "open"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := sale.ParsePhase(args[0])
		if err != nil {
			return err
		}
		if !phaseYes && !ui.ConfirmWord(fmt.Sprintf("Advance the sale to %s? This cannot be undone.", target), target.String()) {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}
		caller, err := authorize(controlWallet, "advance", target.String())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		return withEngine(ctx, func(e *sale.Engine) error {
			if err := e.AdvancePhase(ctx, caller, target); err != nil {
				return err
			}
			fmt.Println(ui.Success("Sale advanced to " + ui.PhaseName(target.String())))
			if e.IsPaused() {
				fmt.Println(ui.Hint("The sale is paused. Resume it with: w3mint unpause"))
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sale status, supply and proceeds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *sale.Engine) error {
			fmt.Println(statusBlock(e.Params(), e.Header(), e.Status()))
			return nil
		})
	},
}

func statusBlock(p sale.Params, h sale.Header, st sale.Status) string {
	return ui.KeyValueBlock("Sale Status", [][2]string{
		{"Status", ui.Status(string(st))},
		{"Phase", ui.PhaseName(h.Phase.String())},
		{"Supply", ui.Val(fmt.Sprintf("%d / %d", h.TotalSupply, p.Limits.MaxSupply))},
		{"Early minted", ui.Val(fmt.Sprintf("%d / %d", h.EarlyIssued, p.Limits.EarlyCap))},
		{"Per request", ui.Val(fmt.Sprint(p.Limits.MaxPerRequest))},
		{"Unit price", ui.Val(config.FormatEther(p.Pricing.UnitPrice) + " ETH")},
		{"Proceeds", ui.Val(config.FormatEther(h.Proceeds) + " ETH")},
		{"Early root", rootLabel(h.EarlyRoot)},
		{"General root", rootLabel(h.GeneralRoot)},
		{"Authority", ui.Addr(p.Authority.Hex())},
	})
}

var recordCmd = &cobra.Command{
	Use:   "record <address>",
	Short: "Show what an address has minted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd.Context(), func(e *sale.Engine) error {
			rec, ok := e.Record(addr)
			if !ok {
				fmt.Println(ui.Info(addr.Hex() + " has not minted"))
				return nil
			}
			claimed := "no"
			if rec.EarlyMinted {
				claimed = "yes"
			}
			who := ui.Addr(addr.Hex())
			if name := walletLabel(newWalletManager())(addr); name != "" {
				who += " " + ui.Meta("("+name+")")
			}
			fmt.Println(ui.KeyValueBlock("Mint Record", [][2]string{
				{"Address", who},
				{"Early claimed", claimed},
				{"General", ui.Val(fmt.Sprint(rec.General))},
				{"Open", ui.Val(fmt.Sprint(rec.Open))},
				{"Granted", ui.Val(fmt.Sprint(rec.Granted))},
				{"Total", ui.Val(fmt.Sprint(rec.Total()))},
			}))
			return nil
		})
	},
}

var holdersCmd = &cobra.Command{
	Use:   "holders",
	Short: "List every address that has minted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *sale.Engine) error {
			snap := e.Snapshot()
			if len(snap.Records) == 0 {
				fmt.Println(ui.Info("No mints yet."))
				return nil
			}
			fmt.Println(holdersTable(snap, walletLabel(newWalletManager())).Render())
			fmt.Println(ui.Meta(fmt.Sprintf("%d holder(s), %d token(s)", len(snap.Records), snap.TotalSupply)))
			return nil
		})
	},
}

// walletLabel names addresses after the local wallets that hold them.
func walletLabel(mgr *wallet.Manager) func(common.Address) string {
	return func(a common.Address) string {
		if w, ok := mgr.Lookup(a); ok {
			return w.Name
		}
		return ""
	}
}

// holdersTable lists every record by address. label may be nil.
func holdersTable(st *sale.State, label func(common.Address) string) *ui.Table {
	recs := make([]*sale.Record, 0, len(st.Records))
	for _, r := range st.Records {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		return bytes.Compare(recs[i].Address[:], recs[j].Address[:]) < 0
	})

	t := ui.NewTable([]ui.Column{
		{Title: "Address", Width: 42},
		{Title: "Wallet", Width: 12},
		{Title: "Early", Width: 5, Right: true},
		{Title: "General", Width: 7, Right: true},
		{Title: "Open", Width: 5, Right: true},
		{Title: "Granted", Width: 7, Right: true},
		{Title: "Total", Width: 6, Right: true},
	})
	for _, r := range recs {
		early := "0"
		if r.EarlyMinted {
			early = "1"
		}
		name := ""
		if label != nil {
			name = label(r.Address)
		}
		t.AddRow(r.Address.Hex(), name, early, fmt.Sprint(r.General), fmt.Sprint(r.Open), fmt.Sprint(r.Granted), fmt.Sprint(r.Total()))
	}
	return t
}

func init() {
	for _, c := range []*cobra.Command{pauseCmd, unpauseCmd, phaseAdvanceCmd} {
		c.Flags().StringVarP(&controlWallet, "wallet", "w", "", "authority wallet (default: the default wallet)")
	}
	phaseAdvanceCmd.Flags().BoolVarP(&phaseYes, "yes", "y", false, "skip the confirmation prompt")
	phaseCmd.AddCommand(phaseAdvanceCmd)
}
