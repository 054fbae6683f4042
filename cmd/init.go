package cmd

import (
	"fmt"
	"os"

	"github.com/Mohsinsiddi/w3mint/internal/config"
	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	initFrom        string
	initAuthority   string
	initMaxSupply   uint64
	initEarlyCap    uint64
	initPerRequest  uint64
	initPrice       string
	initPriceWei    string
	initOverpayment string
	initForce       bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Define the sale (wizard, flags or a YAML file)",
	Long: `Define the sale parameters: authority, supply limits, unit price and
overpayment policy.

With no flags on a terminal an interactive wizard asks for each value.
Otherwise values come from flags or from a YAML sale file:

  w3mint init --authority 0xAbc… --max-supply 105 --early-cap 4 --price 0.02
  w3mint init --from sale.yaml

Changing parameters of a running sale needs --force.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Configured() && !initForce {
			return fmt.Errorf("a sale is already configured in %s (use --force to redefine it)", cfg.Dir())
		}

		sc, early, general, err := initSale(cmd)
		if err != nil {
			return err
		}
		params, err := sc.Params()
		if err != nil {
			return err
		}
		if cfg.Configured() {
			if err := checkResumable(cmd.Context(), params); err != nil {
				return fmt.Errorf("cannot redefine the sale: %w", err)
			}
		}

		cfg.Sale = sc
		if backendFlag != "" {
			// --backend persists when given to init.
			if err := cfg.SetBackend(backendFlag); err != nil {
				return err
			}
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Println(saleBlock("Sale Defined", sc))
		fmt.Println(ui.Success("Sale saved to " + cfg.Dir() + ". It starts paused in the early phase."))
		for _, a := range []struct{ phase, path string }{{"early", early}, {"general", general}} {
			if a.path != "" {
				fmt.Println(ui.Hint(fmt.Sprintf("Publish the %s allowlist: w3mint commitment set %s --allowlist %s", a.phase, a.phase, a.path)))
			}
		}
		fmt.Println(ui.Hint("Add the authority wallet: w3mint wallet add authority --key <private-key>"))
		return nil
	},
}

// initSale collects the sale definition from --from, flags or the wizard, in
// that order, and returns any allowlist paths the sale file named.
func initSale(cmd *cobra.Command) (sc config.SaleConfig, early, general string, err error) {
	if initFrom != "" {
		def, err := config.LoadSaleFile(initFrom)
		if err != nil {
			return sc, "", "", err
		}
		return def.Sale, def.EarlyAllowlist, def.GeneralAllowlist, nil
	}

	sc = cfg.Sale
	anyFlag := false
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Changed && f.Name != "force" {
			anyFlag = true
		}
	})
	if !anyFlag && interactive() {
		fmt.Fprintln(os.Stderr, ui.Banner(Version))
		return fromWizard(sc)
	}

	if initAuthority != "" {
		sc.Authority = initAuthority
	}
	if cmd.Flags().Changed("max-supply") {
		sc.MaxSupply = initMaxSupply
	}
	if cmd.Flags().Changed("early-cap") {
		sc.EarlyCap = initEarlyCap
	}
	if cmd.Flags().Changed("per-request") {
		sc.MaxPerRequest = initPerRequest
	}
	switch {
	case initPrice != "":
		wei, err := config.ParseEther(initPrice)
		if err != nil {
			return sc, "", "", fmt.Errorf("--price: %w", err)
		}
		sc.UnitPriceWei = wei.Dec()
	case initPriceWei != "":
		sc.UnitPriceWei = initPriceWei
	}
	if initOverpayment != "" {
		sc.Overpayment = initOverpayment
	}
	return sc, "", "", nil
}

func fromWizard(sc config.SaleConfig) (config.SaleConfig, string, string, error) {
	price := "0"
	if wei, err := config.ParseWei(sc.UnitPriceWei); err == nil {
		price = config.FormatEther(wei)
	}
	res, err := ui.RunWizard(ui.WizardDefaults{
		Authority:     sc.Authority,
		MaxSupply:     sc.MaxSupply,
		EarlyCap:      sc.EarlyCap,
		MaxPerRequest: sc.MaxPerRequest,
		UnitPrice:     price,
	})
	if err != nil {
		return sc, "", "", err
	}
	wei, err := config.ParseEther(res.UnitPrice)
	if err != nil {
		return sc, "", "", err
	}
	sc = config.SaleConfig{
		Authority:     res.Authority,
		MaxSupply:     res.MaxSupply,
		EarlyCap:      res.EarlyCap,
		MaxPerRequest: res.MaxPerRequest,
		UnitPriceWei:  wei.Dec(),
		Overpayment:   res.Overpayment,
	}
	if err := cfg.SetBackend(res.Backend); err != nil {
		return sc, "", "", err
	}
	return sc, "", "", nil
}

// saleBlock renders the sale definition.
func saleBlock(title string, sc config.SaleConfig) string {
	price := sc.UnitPriceWei + " wei"
	if wei, err := config.ParseWei(sc.UnitPriceWei); err == nil {
		price = config.FormatEther(wei) + " ETH"
	}
	return ui.KeyValueBlock(title, [][2]string{
		{"Authority", ui.Addr(sc.Authority)},
		{"Max supply", ui.Val(fmt.Sprint(sc.MaxSupply))},
		{"Early cap", ui.Val(fmt.Sprint(sc.EarlyCap))},
		{"Per request", ui.Val(fmt.Sprint(sc.MaxPerRequest))},
		{"Unit price", ui.Val(price)},
		{"Overpayment", sc.Overpayment},
		{"Backend", cfg.Backend},
	})
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initFrom, "from", "", "load the sale from a YAML file")
	f.StringVar(&initAuthority, "authority", "", "authority address")
	f.Uint64Var(&initMaxSupply, "max-supply", 0, "maximum total supply")
	f.Uint64Var(&initEarlyCap, "early-cap", 0, "maximum tokens minted in the early phase")
	f.Uint64Var(&initPerRequest, "per-request", 0, "maximum tokens per general/open request")
	f.StringVar(&initPrice, "price", "", "unit price in ether, e.g. 0.01")
	f.StringVar(&initPriceWei, "price-wei", "", "unit price in wei")
	f.StringVar(&initOverpayment, "overpayment", "", "overpayment policy (keep|refund)")
	f.BoolVar(&initForce, "force", false, "redefine an already configured sale")
	initCmd.MarkFlagsMutuallyExclusive("price", "price-wei")
	initCmd.MarkFlagsMutuallyExclusive("from", "authority")
}
