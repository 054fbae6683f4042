package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/spf13/cobra"
)

var configJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change local settings",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the sale definition and local settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configJSON {
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		def := cfg.DefaultWallet
		if def == "" {
			def = ui.Meta("(none)")
		}
		fmt.Println(ui.KeyValueBlock("Settings", [][2]string{
			{"Config dir", cfg.Dir()},
			{"Default wallet", def},
			{"Backend", cfg.Backend},
			{"Sale state", cfg.StatePath()},
		}))
		if !cfg.Configured() {
			fmt.Println(ui.Hint("No sale defined yet. Run: w3mint init"))
			return nil
		}
		fmt.Println(saleBlock("Sale", cfg.Sale))
		return nil
	},
}

var configSetDefaultWalletCmd = &cobra.Command{
	Use:   "set-default-wallet <name>",
	Short: "Set the wallet used when --wallet is omitted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := newWalletManager().Get(args[0]); err != nil {
			return fmt.Errorf("wallet %q: %w", args[0], err)
		}
		cfg.DefaultWallet = args[0]
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Default wallet set to %q", args[0])))
		return nil
	},
}

var configSetBackendCmd = &cobra.Command{
	Use:   "set-backend <json|sqlite>",
	Short: "Choose where sale state is stored",
	Long: `Choose where sale state is stored: a JSON file (state.json) or a SQLite
database (sale.db) in the config directory.

Switching does not migrate existing state.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "sqlite"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.SetBackend(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("State backend set to %s (%s)", cfg.Backend, cfg.StatePath())))
		return nil
	},
}

func init() {
	configListCmd.Flags().BoolVar(&configJSON, "json", false, "print the raw config.json")
	configCmd.AddCommand(configListCmd, configSetDefaultWalletCmd, configSetBackendCmd)
}
