package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"proxyscout/internal/app"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "proxyscout",
	Short: "Pick the best HTTP proxy from a pool of ephemeral candidates",
	Long: `proxyscout - pick the best HTTP proxy from a pool of ephemeral candidates

  Probes every candidate concurrently, scores it on latency, stability and
  availability, and pushes the winner to a New-API style management API.

  Quick start:
    proxyscout settings set channel.base_url https://api.example.com
    proxyscout settings set channel.ids 1,2,3
    proxyscout test
    proxyscout run --dry-run
    proxyscout daemon

  Settings are read from the database, then PROXYSCOUT_* environment
  variables (BASE_URL, ADMIN_ID, ADMIN_TOKEN, CHANNEL_IDS, PROXY_REGION and
  MAX_PROXY_TEST_COUNT are honoured too), then flags.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts, err := appOptions(cmd)
		if err != nil {
			return err
		}
		appInstance, err = app.New(opts)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance != nil {
			return appInstance.Close()
		}
		return nil
	},
}

// appOptions maps the global flags onto app options.
func appOptions(cmd *cobra.Command) (app.Options, error) {
	opts := app.Options{Overrides: make(map[string]string)}

	opts.DBPath, _ = cmd.Flags().GetString("db")
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		opts.Overrides["log.level"] = level
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts.Overrides["log.level"] = "debug"
	}
	if f := cmd.Flags().Lookup("tui"); f != nil && f.Value.String() == "true" {
		// The alternate screen owns the terminal.
		opts.Console = zapcore.AddSync(io.Discard)
	}
	return opts, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database path (default: data directory, or "+app.DBPathEnv+")")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// No database needed.
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "proxyscout %s\n", version)
	},
}
