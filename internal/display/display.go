// Package display renders research reports and run progress for the
// terminal.
package display

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/dyike/CortexResearch/models"
)

const defaultWidth = 80

// ResultsDisplay writes reports to out. Markdown is rendered with glamour
// only when out is a terminal; otherwise the memo is printed as-is.
type ResultsDisplay struct {
	out      io.Writer
	width    int
	terminal bool
	styles   styles
}

type styles struct {
	header    lipgloss.Style
	section   lipgloss.Style
	label     lipgloss.Style
	warning   lipgloss.Style
	errorItem lipgloss.Style
	buy       lipgloss.Style
	sell      lipgloss.Style
	hold      lipgloss.Style
	muted     lipgloss.Style
	approved  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, width int) styles {
	return styles{
		header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(width - 2),
		section: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			MarginTop(1),
		label: r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		warning: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F59E0B")).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(0, 2).
			Width(width - 2),
		errorItem: r.NewStyle().Foreground(lipgloss.Color("#EF4444")),
		buy:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		sell:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		hold:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B")),
		muted:     r.NewStyle().Italic(true).Foreground(lipgloss.Color("#6B7280")),
		approved:  r.NewStyle().Foreground(lipgloss.Color("#10B981")),
	}
}

func NewResultsDisplay(out io.Writer) *ResultsDisplay {
	width, terminal := defaultWidth, false
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		terminal = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 40 {
			width = min(w, 120)
		}
	}
	return &ResultsDisplay{
		out:      out,
		width:    width,
		terminal: terminal,
		styles:   newStyles(lipgloss.NewRenderer(out), width),
	}
}

// Show writes the rendered report.
func (d *ResultsDisplay) Show(r *models.Report) {
	fmt.Fprint(d.out, d.Render(r))
}

// Render returns the full report view. Degraded reports open with a
// warning banner listing the recorded errors.
func (d *ResultsDisplay) Render(r *models.Report) string {
	var b strings.Builder
	b.WriteString(d.styles.header.Render(fmt.Sprintf("%s research report", r.Ticker)))
	b.WriteString("\n")
	if r.Degraded {
		b.WriteString(d.renderDegraded(r))
	}
	b.WriteString(d.renderSummary(r))
	b.WriteString(d.renderTechnicals(r))
	b.WriteString(d.renderNews(r))
	b.WriteString(d.renderMemo(r))
	b.WriteString(d.renderReview(r))
	b.WriteString(d.renderFooter())
	return b.String()
}

func (d *ResultsDisplay) renderDegraded(r *models.Report) string {
	var b strings.Builder
	msg := "DEGRADED RUN: some inputs were unavailable, read the memo with care."
	if r.AnalystDraft == "" {
		msg = "DEGRADED RUN: no memo was produced."
	}
	b.WriteString(d.styles.warning.Render(msg))
	b.WriteString("\n")
	for _, e := range r.Errors {
		b.WriteString(d.styles.errorItem.Render("  ✗ " + e))
		b.WriteString("\n")
	}
	return b.String()
}

func (d *ResultsDisplay) renderSummary(r *models.Report) string {
	var b strings.Builder
	b.WriteString(d.styles.section.Render("Summary"))
	b.WriteString("\n")
	d.field(&b, "Recommendation", d.recommendation(r.Recommendation))
	if r.TargetPrice != "" {
		d.field(&b, "Target price", "$"+r.TargetPrice)
	}
	if p, ok := r.MarketData["current_price"]; ok {
		d.field(&b, "Current price", fmt.Sprintf("$%v", p))
	}
	status := d.styles.approved.Render("approved")
	if !r.Approved {
		status = d.styles.hold.Render("not approved")
	}
	d.field(&b, "Review", status)
	d.field(&b, "Revisions", fmt.Sprintf("%d of %d", r.RevisionCount, r.RevisionCap))
	if r.RunID != "" {
		d.field(&b, "Run", r.RunID)
	}
	return b.String()
}

func (d *ResultsDisplay) renderTechnicals(r *models.Report) string {
	var b strings.Builder
	b.WriteString(d.styles.section.Render("Technicals"))
	b.WriteString("\n")
	if r.Technicals == nil {
		b.WriteString(d.styles.muted.Render("  unavailable"))
		b.WriteString("\n")
		return b.String()
	}
	o := r.Technicals.Overall
	d.field(&b, "Overall", fmt.Sprintf("%s (%.0f%% confidence)", d.recommendation(o.Signal), o.Confidence))
	groups := r.Technicals.Groups()
	for _, group := range []string{"momentum", "trend", "volatility"} {
		names := make([]string, 0, len(groups[group]))
		for name := range groups[group] {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			ind := groups[group][name]
			value := fmt.Sprintf("%.2f", ind.Value)
			if ind.Signal != "" {
				value += " " + ind.Signal
			}
			d.field(&b, strings.ToUpper(name), value)
		}
	}
	return b.String()
}

func (d *ResultsDisplay) renderNews(r *models.Report) string {
	var b strings.Builder
	b.WriteString(d.styles.section.Render("News"))
	b.WriteString("\n")
	if len(r.News) == 0 {
		b.WriteString(d.styles.muted.Render("  no recent articles"))
		b.WriteString("\n")
		return b.String()
	}
	for _, n := range r.News {
		fmt.Fprintf(&b, "  • %s\n", n.Title)
		if n.URL != "" {
			b.WriteString("    " + d.styles.label.Render(n.URL) + "\n")
		}
	}
	return b.String()
}

func (d *ResultsDisplay) renderMemo(r *models.Report) string {
	var b strings.Builder
	b.WriteString(d.styles.section.Render("Memo"))
	b.WriteString("\n")
	memo := r.FinalReport
	if memo == "" {
		memo = r.AnalystDraft
	}
	if memo == "" {
		b.WriteString(d.styles.muted.Render("  no memo"))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(d.markdown(memo))
	if !strings.HasSuffix(memo, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func (d *ResultsDisplay) renderReview(r *models.Report) string {
	if r.Critique == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(d.styles.section.Render("Risk review"))
	b.WriteString("\n")
	b.WriteString(d.markdown(r.Critique))
	b.WriteString("\n")
	return b.String()
}

func (d *ResultsDisplay) renderFooter() string {
	return "\n" + d.styles.muted.Render(fmt.Sprintf(
		"Generated %s. For information only, not financial advice.",
		time.Now().Format("2006-01-02 15:04"))) + "\n"
}

func (d *ResultsDisplay) markdown(text string) string {
	if !d.terminal {
		return text
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(d.width-4),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

func (d *ResultsDisplay) field(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", d.styles.label.Render(fmt.Sprintf("%-15s", label+":")), value)
}

func (d *ResultsDisplay) recommendation(signal string) string {
	switch strings.ToUpper(signal) {
	case "BUY":
		return d.styles.buy.Render("BUY")
	case "SELL":
		return d.styles.sell.Render("SELL")
	case "":
		return d.styles.muted.Render("n/a")
	default:
		return d.styles.hold.Render(strings.ToUpper(signal))
	}
}
