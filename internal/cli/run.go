package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"proxyscout/internal/latency"
	"proxyscout/internal/updater"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the update job once",
	Long: `Fetch the candidate list, evaluate it, and push the selected proxy to
every configured channel.

The run is skipped when the list content is unchanged since the last
successful run, unless --force is given. --dry-run evaluates and records the
result without pushing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		force, _ := cmd.Flags().GetBool("force")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		quiet, _ := cmd.Flags().GetBool("quiet")

		cfg := appInstance.Config
		if err := cfg.Validate(); err != nil {
			return err
		}
		if !dryRun {
			// Fail before spending minutes on probes.
			if err := cfg.ValidateChannel(); err != nil {
				return err
			}
		}

		deps := updater.Deps{
			Config:  cfg,
			Storage: appInstance.Storage,
			Metrics: appInstance.Metrics,
			Logger:  appInstance.Logger,
		}
		if cmd.Flags().Changed("file") || cmd.Flags().Changed("candidate") {
			loader, err := loaderFromFlags(cmd)
			if err != nil {
				return err
			}
			deps.Loader = loader
		}
		u, err := updater.New(deps)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var progress latency.ProgressFunc
		if !quiet {
			progress = progressPrinter(out)
		}

		res, err := u.Run(ctx, updater.Options{Force: force, DryRun: dryRun, Progress: progress})
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Fprintln(out, "Candidate list unchanged since the last run, nothing to do (use --force to re-evaluate).")
			return nil
		}

		if !quiet && res.Batch != nil {
			printRanking(out, res.Batch.Results, res.Selected)
		}
		printSelection(out, res.Selected, res.Degraded)
		switch {
		case res.Pushed:
			fmt.Fprintf(out, "Pushed to %d channel(s).\n", len(cfg.Channel.ChannelIDs))
		case res.Selected != nil && dryRun:
			fmt.Fprintf(out, "Dry run, not pushed: %s\n", res.ProxyURL)
		}
		return nil
	},
}

func init() {
	addLoaderFlags(runCmd)
	runCmd.Flags().BoolP("force", "f", false, "evaluate even if the list is unchanged")
	runCmd.Flags().Bool("dry-run", false, "do not push the selected proxy")
	runCmd.Flags().BoolP("quiet", "q", false, "only print the selection")

	rootCmd.AddCommand(runCmd)
}
