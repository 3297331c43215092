package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"proxyscout/internal/scoring"
)

type detailsModel struct {
	width  int
	height int
}

func newDetailsModel() detailsModel {
	return detailsModel{}
}

func (dm *detailsModel) setSize(w, h int) {
	dm.width = w
	dm.height = h
}

func (dm *detailsModel) View(e *entry) string {
	if e == nil {
		return forceHeight(dimStyle.Render("  Select a candidate on the Candidates tab."), dm.width, dm.height)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(e.candidate.Address))
	b.WriteString("\n")

	r := e.result
	if r == nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s", e.state)))
		return forceHeight(b.String(), dm.width, dm.height)
	}
	if r.Error != "" {
		b.WriteString(errorStyle.Render("  " + r.Error))
		b.WriteString("\n")
	}

	cardWidth := (dm.width - 6) / 2
	if cardWidth < 30 {
		cardWidth = 30
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		latencyCard(r, cardWidth),
		variabilityCard(r, cardWidth),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		scoresCard(r, cardWidth),
		apiCard(r, cardWidth),
	)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))

	return forceHeight(b.String(), dm.width, dm.height)
}

func latencyCard(r *scoring.EvaluatedCandidate, width int) string {
	basic := r.Stats.Basic
	rows := []string{
		msRow("Mean", basic.Mean),
		msRow("Median", basic.Median),
		msRow("Min", basic.Min),
		msRow("Max", basic.Max),
		msRow("P95", basic.P95),
		msRow("P99", basic.P99),
		statusRow("Samples", fmt.Sprintf("%d/%d ok", r.Stats.Metadata.SuccessfulSamples, r.TotalSamples)),
	}
	if r.IsFallback {
		rows = append(rows, statusRow("Pass", warningStyle.Render("fallback")))
	}
	return card("Latency", rows, width)
}

func variabilityCard(r *scoring.EvaluatedCandidate, width int) string {
	v := r.Stats.Variability
	rb := r.Stats.Robustness
	rows := []string{
		msRow("Std dev", v.StdDev),
		ratioRow("CV", v.CoefficientOfVariation),
		msRow("IQR", v.IQR),
		msRow("MAD", v.MAD),
		msRow("Trimmed", rb.TrimmedMean),
		ratioRow("Outliers", rb.OutlierRatio),
	}
	return card("Variability", rows, width)
}

func scoresCard(r *scoring.EvaluatedCandidate, width int) string {
	s := r.Scores
	rows := []string{
		scoreRow("Composite", r.CompositeScore),
		scoreRow("QoS", r.QoSScore),
		scoreRow("Performance", s.Performance),
		scoreRow("Stability", s.Stability),
		scoreRow("Availability", s.Availability),
	}
	return card("Scores", rows, width)
}

func apiCard(r *scoring.EvaluatedCandidate, width int) string {
	api := r.Stats.API
	rows := []string{
		scoreRow("Success", r.Stats.SuccessRate),
		statusRow("Spike rate", fmt.Sprintf("%.2f", api.SpikeRate)),
		statusRow("Timeout risk", fmt.Sprintf("%.2f", api.TimeoutRiskScore)),
		scoreRow("Sustained", api.SustainedPerformanceScore),
	}
	return card("API", rows, width)
}

func card(title string, rows []string, width int) string {
	content := cardTitleStyle.Render(title) + "\n" + strings.Join(rows, "\n")
	return cardStyle.Width(width).Render(content)
}

func statusRow(label, value string) string {
	return cardLabelStyle.Render(label) + cardValueStyle.Render(value)
}

func msRow(label string, v *float64) string {
	if v == nil {
		return statusRow(label, dimStyle.Render("-"))
	}
	return cardLabelStyle.Render(label) + latencyStyle(*v).Render(fmt.Sprintf("%.1fms", *v))
}

func ratioRow(label string, v *float64) string {
	if v == nil {
		return statusRow(label, dimStyle.Render("-"))
	}
	return statusRow(label, fmt.Sprintf("%.3f", *v))
}

func scoreRow(label string, v float64) string {
	return cardLabelStyle.Render(label) + scoreStyle(v).Render(fmt.Sprintf("%.3f", v))
}
