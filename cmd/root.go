package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	cfgFile     string
	apiURL      string
	storagePath string
	backendName string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"

	// cfg is resolved before any subcommand runs
	cfg *internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cre-chat",
	Short: "Terminal client for the CRE research assistant",
	Long: `A terminal client for the commercial real estate research assistant.

Chat with the backend's agents, keep a local history of conversations,
and manage the vector stores, files and spreadsheets the agents search.

Features:
  • Streamed chat with agent switching and tool activity
  • Saved conversations with search, export and live listing
  • Call script, objection and value proposition generators
  • Vector store, file and spreadsheet administration

Quick Start:
  cre-chat chat                          # Start an interactive chat
  cre-chat ask "Phoenix industrial cap rates?"
  cre-chat list                          # List saved conversations
  cre-chat export --format md            # Export as Markdown

Configuration is read from ~/.cre-chat/config.yaml and CRE_* environment
variables; flags take precedence over both.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)
		internal.SetLogOutput(cmd.ErrOrStderr())

		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		internal.LogDebug("api=%s storage=%s (%s)", cfg.APIURL, cfg.StorageLocation(), cfg.Storage.Backend)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&cfgFile, "config", "", "Config file (default ~/.cre-chat/config.yaml)")
	flags.StringVar(&apiURL, "api-url", "", "Backend base URL")
	flags.StringVar(&storagePath, "storage", "", "Directory holding saved conversations")
	flags.StringVar(&backendName, "backend", "", "Storage backend (file, sqlite)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
