package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"proxyscout/internal/latency"
	"proxyscout/internal/scoring"
)

// progressPrinter prints one line per finished candidate. Safe for
// concurrent use.
func progressPrinter(w io.Writer) latency.ProgressFunc {
	var mu sync.Mutex
	return func(p latency.Progress) {
		if p.State != latency.StateDone || p.Result == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "  [%d/%d] %-24s %s\n", p.Completed, p.Total,
			truncateName(p.Candidate.Address, 24), resultSummary(p.Result))
	}
}

func resultSummary(r *scoring.EvaluatedCandidate) string {
	switch {
	case r.Error != "":
		return "ERROR (" + r.Error + ")"
	case !r.IsWorking():
		return "FAILED"
	}
	s := fmt.Sprintf("%.0f ms  score %.2f", meanMS(r), r.CompositeScore)
	if r.IsFallback {
		s += "  (fallback)"
	}
	return s
}

func meanMS(r *scoring.EvaluatedCandidate) float64 {
	if r.Stats.Basic.Mean == nil {
		return 0
	}
	return *r.Stats.Basic.Mean
}

func msOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f ms", *v)
}

// printRanking prints the ranked results as a table.
func printRanking(w io.Writer, results []*scoring.EvaluatedCandidate, selected *scoring.EvaluatedCandidate) {
	fmt.Fprintf(w, "\nResults (ranked):\n")
	fmt.Fprintln(w, strings.Repeat("─", 96))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tADDRESS\tUSER\tMEAN\tP95\tSUCCESS\tCOMPOSITE\tQOS\tPASS\tSTATUS")
	fmt.Fprintln(tw, "-\t-------\t----\t----\t---\t-------\t---------\t---\t----\t------")

	for i, r := range results {
		status := "FAIL"
		if r.IsWorking() {
			status = "OK"
		}
		if r == selected {
			status += " *"
		}
		pass := "primary"
		if r.IsFallback {
			pass = "fallback"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.0f%%\t%.3f\t%.3f\t%s\t%s\n",
			i+1,
			r.Candidate.Address,
			truncateName(r.Candidate.Credential, 20),
			msOrNA(r.Stats.Basic.Mean),
			msOrNA(r.Stats.Basic.P95),
			r.Stats.SuccessRate*100,
			r.CompositeScore,
			r.QoSScore,
			pass,
			status,
		)
	}
	tw.Flush()
}

// printSelection prints the selection outcome.
func printSelection(w io.Writer, selected *scoring.EvaluatedCandidate, degraded bool) {
	switch {
	case selected == nil:
		fmt.Fprintln(w, "\nNo working proxy found.")
	case degraded:
		fmt.Fprintf(w, "\nSelected (degraded, no candidate met the thresholds): %s  composite %.3f  qos %.3f\n",
			selected.Candidate.Address, selected.CompositeScore, selected.QoSScore)
	default:
		fmt.Fprintf(w, "\nSelected: %s  composite %.3f  qos %.3f\n",
			selected.Candidate.Address, selected.CompositeScore, selected.QoSScore)
	}
}

func truncateName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	return name[:maxLen-3] + "..."
}
