package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the last-run cache",
	Long: `The cache records the content hash of the last candidate list that was
evaluated and pushed, together with the selected proxy. A run over an
unchanged list is skipped.`,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cache record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := appInstance.Storage.GetCacheRecord(context.Background())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if record == nil {
			fmt.Fprintln(out, "No cache record.")
			return nil
		}
		fmt.Fprintf(out, "  Content hash: %s\n", record.ContentHash)
		fmt.Fprintf(out, "  Selected:     %s\n", record.SelectedAddress)
		fmt.Fprintf(out, "  User:         %s\n", record.SelectedCredential)
		fmt.Fprintf(out, "  Composite:    %.3f\n", record.CompositeScore)
		fmt.Fprintf(out, "  Updated:      %s (%s ago)\n",
			record.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			time.Since(record.UpdatedAt).Round(time.Second))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cache record so the next run re-evaluates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appInstance.Storage.ClearCacheRecord(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
