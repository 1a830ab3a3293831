package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexResearch/models"
)

// Progress prints one line per stage event while a run executes.
type Progress struct {
	out     io.Writer
	running lipgloss.Style
	done    lipgloss.Style
	failed  lipgloss.Style
	route   lipgloss.Style
}

func NewProgress(out io.Writer) *Progress {
	r := lipgloss.NewRenderer(out)
	return &Progress{
		out:     out,
		running: r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		done:    r.NewStyle().Foreground(lipgloss.Color("#10B981")),
		failed:  r.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
		route:   r.NewStyle().Foreground(lipgloss.Color("#8B5CF6")),
	}
}

func (p *Progress) Event(ev *models.StageEvent) {
	switch ev.Type {
	case models.EventStageStart:
		label := ev.Stage
		if ev.Revision > 0 {
			label = fmt.Sprintf("%s (revision %d)", ev.Stage, ev.Revision)
		}
		fmt.Fprintln(p.out, p.running.Render("… "+label))
	case models.EventStageEnd:
		if ev.Error != "" {
			fmt.Fprintln(p.out, p.failed.Render(fmt.Sprintf("✗ %s: %s", ev.Stage, ev.Error)))
			return
		}
		fmt.Fprintln(p.out, p.done.Render(fmt.Sprintf("✓ %s (%dms)", ev.Stage, ev.ElapsedMs)))
	case models.EventRoute:
		fmt.Fprintln(p.out, p.route.Render(fmt.Sprintf("→ %s: %s", ev.Label, ev.Next)))
	case models.EventFinish:
		if ev.Error != "" {
			fmt.Fprintln(p.out, p.failed.Render("run failed: "+ev.Error))
		}
	}
}

// Consume prints events until the channel closes.
func (p *Progress) Consume(events <-chan *models.StageEvent) {
	for ev := range events {
		p.Event(ev)
	}
}

func DisplayError(w io.Writer, err error, context string) {
	style := lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	fmt.Fprintln(w, style.Render(fmt.Sprintf("✗ %s: %v", context, err)))
}

func DisplaySuccess(w io.Writer, message string) {
	style := lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color("#10B981"))
	fmt.Fprintln(w, style.Render("✓ "+message))
}
