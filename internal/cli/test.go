package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"proxyscout/internal/latency"
	"proxyscout/internal/storage/models"
	"proxyscout/internal/tui"
	"proxyscout/internal/updater"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Evaluate candidates without pushing",
	Long: `Evaluate proxy candidates and print the ranked results.

Candidates come from the configured list URL by default, from a local
markdown table with --file, or from repeated --candidate address,user flags.
Nothing is pushed and the cache is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		cfg := appInstance.Config
		// Flags override stored settings for this invocation only.
		for flag, key := range testFlagSettings {
			if cmd.Flags().Changed(flag) {
				value, _ := cmd.Flags().GetString(flag)
				if err := cfg.Set(key, value); err != nil {
					return err
				}
			}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		loader, err := loaderFromFlags(cmd)
		if err != nil {
			return err
		}
		list, err := loader.Load(ctx)
		if err != nil {
			return err
		}

		useTUI, _ := cmd.Flags().GetBool("tui")
		if useTUI {
			p := tui.NewProgram(ctx, tui.Deps{
				Config:     cfg,
				Storage:    appInstance.Storage,
				Candidates: list.Candidates,
				Metrics:    appInstance.Metrics,
				Logger:     appInstance.Logger,
			})
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		}

		tc, err := cfg.Engine.TesterConfig(nil, appInstance.Metrics, appInstance.Logger)
		if err != nil {
			return err
		}
		tester := latency.NewTester(tc)
		policy := cfg.Engine.Policy(appInstance.Logger)

		out := cmd.OutOrStdout()
		asJSON, _ := cmd.Flags().GetBool("json")

		var progress latency.ProgressFunc
		if !asJSON {
			n := len(list.Candidates)
			if tc.MaxCandidates > 0 && n > tc.MaxCandidates {
				n = tc.MaxCandidates
			}
			fmt.Fprintf(out, "Testing %d of %d candidates...\n\n", n, len(list.Candidates))
			progress = progressPrinter(out)
		}

		batch := tester.TestBatch(ctx, list.Candidates, progress)
		if err := ctx.Err(); err != nil {
			return err
		}
		selected := policy.Select(batch.Results)
		degraded := selected != nil && !policy.Qualifies(selected)

		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"results":  batch.Results,
				"selected": selected,
				"degraded": degraded,
			})
		}

		printRanking(out, batch.Results, selected)
		printSelection(out, selected, degraded)
		fmt.Fprintf(out, "\nSummary: %d tested, %d working, %d failed, %d fallback (%.1fs)\n",
			batch.Tested, batch.Working, batch.Failed, batch.Fallbacks, batch.Duration.Seconds())
		return nil
	},
}

// testFlagSettings maps test flags onto settings keys.
var testFlagSettings = map[string]string{
	"workers":  "engine.concurrency",
	"timeout":  "engine.request_timeout",
	"category": "engine.endpoint_category",
	"max":      "engine.max_candidates",
	"region":   "source.region",
}

// loaderFromFlags picks the candidate source from --candidate, --file or the
// configured list URL, in that order.
func loaderFromFlags(cmd *cobra.Command) (updater.Loader, error) {
	cfg := appInstance.Config

	raw, _ := cmd.Flags().GetStringArray("candidate")
	if len(raw) > 0 {
		candidates, err := parseCandidates(raw)
		if err != nil {
			return nil, err
		}
		return updater.StaticLoader{Candidates: candidates}, nil
	}
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		return updater.FileLoader{Path: path, Region: cfg.Source.Region}, nil
	}
	return updater.NewRemoteLoader(cfg, appInstance.Logger), nil
}

// parseCandidates parses "address,user" pairs. The user part is optional.
func parseCandidates(raw []string) ([]models.Candidate, error) {
	candidates := make([]models.Candidate, 0, len(raw))
	for _, r := range raw {
		addr, user, _ := strings.Cut(r, ",")
		c := models.Candidate{Address: strings.TrimSpace(addr), Credential: strings.TrimSpace(user)}
		if _, _, err := c.SplitAddress(); err != nil {
			return nil, fmt.Errorf("--candidate %q: %w", r, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func addLoaderFlags(cmd *cobra.Command) {
	cmd.Flags().String("file", "", "read candidates from a local markdown table")
	cmd.Flags().StringArray("candidate", nil, "test this candidate, as address,user (repeatable)")
}

func init() {
	addLoaderFlags(testCmd)
	testCmd.Flags().StringP("workers", "w", "", "candidates probed in parallel")
	testCmd.Flags().StringP("timeout", "t", "", "per-probe timeout (e.g. 5s, or milliseconds)")
	testCmd.Flags().StringP("category", "c", "", "probe endpoint category (fast, standard, heavy, mixed)")
	testCmd.Flags().StringP("max", "n", "", "candidates tested (0 = all)")
	testCmd.Flags().String("region", "", "region column to select (empty = all)")
	testCmd.Flags().Bool("json", false, "print results as JSON")
	testCmd.Flags().Bool("tui", false, "show the interactive live view")

	testCmd.RegisterFlagCompletionFunc("category", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			string(latency.CategoryFast),
			string(latency.CategoryStandard),
			string(latency.CategoryHeavy),
			string(latency.CategoryMixed),
		}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(testCmd)
}
