package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexResearch/internal/display"
	"github.com/dyike/CortexResearch/internal/graph"
	"github.com/dyike/CortexResearch/internal/logging"
	"github.com/dyike/CortexResearch/models"
	"github.com/dyike/CortexResearch/pkg/app"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

type analyzeOptions struct {
	revisions int
	progress  bool
	asJSON    bool
}

func newAnalyzeCmd(e *env) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze TICKER",
		Short: "Research a ticker and print the reviewed memo",
		Example: `  cortex analyze AAPL
  cortex analyze MSFT --max-revisions 3 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dataflows.ValidateSymbol(args[0]); err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-revisions") {
				opts.revisions = e.cfg.MaxRevisions
			}
			if opts.revisions < 0 {
				return fmt.Errorf("--max-revisions must be >= 0, got %d", opts.revisions)
			}
			_, err := runAnalysis(cmd.Context(), e, args[0], opts)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.revisions, "max-revisions", 2, "Maximum number of memo revisions")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "Print stage progress to stderr")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the report as JSON")

	return cmd
}

// runAnalysis builds an engine from the current config, runs one research
// pass and prints the report. A failed run still prints whatever partial
// report it produced before returning the error.
func runAnalysis(ctx context.Context, e *env, ticker string, opts analyzeOptions) (*models.Report, error) {
	deps := e.deps
	deps.Logger = e.logger
	engine, err := app.BuildEngine(ctx, *e.cfg, deps)
	if err != nil {
		return nil, err
	}

	events := make(chan *models.StageEvent, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if opts.progress {
			display.NewProgress(e.errOut).Consume(events)
			return
		}
		for range events {
		}
	}()

	ctx = graph.ContextWithRunID(ctx, "")
	start := time.Now()
	state, runErr := engine.Graph.Propagate(ctx, ticker, opts.revisions,
		graph.WithHooks(graph.NewLoggerCallback(logging.NewNop(), events)))
	close(events)
	<-done
	if state == nil {
		return nil, runErr
	}

	report := state.Project(0)
	report.RunID = graph.RunID(ctx)
	e.logger.Info("analysis finished",
		"run_id", report.RunID,
		"ticker", report.Ticker,
		"approved", report.Approved,
		"revisions", report.RevisionCount,
		"degraded", report.Degraded,
		"elapsed", time.Since(start))

	if opts.asJSON {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return report, err
		}
	} else {
		display.NewResultsDisplay(e.out).Show(report)
	}

	if runErr != nil {
		return report, fmt.Errorf("analysis failed: %w", runErr)
	}
	return report, nil
}
