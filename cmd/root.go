package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Mohsinsiddi/w3mint/internal/config"
	"github.com/Mohsinsiddi/w3mint/internal/sale"
	"github.com/Mohsinsiddi/w3mint/internal/ui"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3mint/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir      string
	cfg         *config.Config
	verbose     bool
	backendFlag string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3mint",
	Short: "Run a capped-supply, three-phase token mint",
	Long: `w3mint admits mint requests for a capped-supply token sale.

  The sale runs through three phases that only move forward:
    early    allowlisted, one free token per address
    general  allowlisted, paid, limited per request
    open     anyone, paid, limited per request

  The authority wallet publishes allowlist commitments (Merkle roots),
  pauses and unpauses the sale, advances the phase and grants tokens.

Start with: w3mint init`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(os.Stderr, verbose)

		// Load config (skip for commands that don't need it).
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// printError renders a sale rejection with its stable code, anything else
// as a plain error line.
func printError(w io.Writer, err error) {
	if r, ok := sale.AsReason(err); ok {
		fmt.Fprintln(w, ui.Reason(r.Code, err.Error()))
		return
	}
	fmt.Fprintln(w, ui.Err(err.Error()))
}

// setupLogging installs the process-wide go-ethereum logger. Engine activity
// is logged at info and debug, so it stays hidden unless --verbose is set.
func setupLogging(w io.Writer, verbose bool) {
	lvl := slog.LevelWarn
	if verbose {
		lvl = slog.LevelDebug
	}
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = term.IsTerminal(int(f.Fd()))
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, lvl, useColor)))
}

// interactive reports whether stdin is a terminal a prompt can be shown on.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func init() {
	// W3MINT_CONFIG_DIR env var overrides the default; --config overrides both.
	if envDir := os.Getenv(config.EnvConfigDir); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.w3mint)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "state backend for this invocation (json|sqlite)")

	// Register all sub-commands.
	rootCmd.AddCommand(
		initCmd,
		configCmd,
		walletCmd,
		commitmentCmd,
		proofCmd,
		leafCmd,
		pauseCmd,
		unpauseCmd,
		phaseCmd,
		statusCmd,
		recordCmd,
		holdersCmd,
		mintCmd,
		quoteCmd,
	)
}
