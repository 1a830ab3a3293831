package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexResearch/internal/display"
	"github.com/dyike/CortexResearch/pkg/app"
)

func runInteractiveMode(ctx context.Context, e *env) error {
	banner := lipgloss.NewRenderer(e.out).NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 2)
	fmt.Fprintln(e.out, banner.Render("CortexResearch\nEquity research memos with a risk review loop"))

	model := e.cfg.DeepThinkLLM
	if e.cfg.LLMProvider == "offline" {
		model = app.OfflineModel
	}

	for {
		ticker, err := PromptForTicker()
		if err != nil {
			return interrupted(err)
		}
		revisions, err := PromptForRevisions(e.cfg.MaxRevisions)
		if err != nil {
			return interrupted(err)
		}
		ok, err := PromptForConfirmation(ticker, revisions, model)
		if err != nil {
			return interrupted(err)
		}
		if ok {
			opts := analyzeOptions{revisions: revisions, progress: true}
			if _, err := runAnalysis(ctx, e, ticker, opts); err != nil {
				display.DisplayError(e.errOut, err, "analysis")
			}
		}

		again, err := PromptForRestartOrExit()
		if err != nil {
			return interrupted(err)
		}
		if !again {
			return nil
		}
	}
}

// interrupted treats Ctrl-C at a prompt as a normal exit.
func interrupted(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return nil
	}
	return err
}
