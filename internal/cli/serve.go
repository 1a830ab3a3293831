package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/internal/api"
	"github.com/dyike/CortexResearch/internal/debug"
	"github.com/dyike/CortexResearch/internal/metrics"
	"github.com/dyike/CortexResearch/pkg/app"
)

func newServeCmd(e *env) *cobra.Command {
	var (
		addr      string
		einoDebug bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the research pipeline over HTTP",
		Long: `Serve GET / (health), POST /analyze, POST /analyze/stream and GET /metrics.
The pipeline is rebuilt whenever the config file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if einoDebug {
				e.cfg.EinoDebugEnabled = true
			}
			if addr == "" {
				addr = e.cfg.ServerAddr
			}

			rt, reg, err := e.prepareServe(ctx, debug.NewEinoDebugger(e.cfg, e.logger))
			if err != nil {
				return err
			}
			defer rt.Close()

			srv := api.NewServer(rt, api.WithLogger(e.logger), api.WithMetrics(reg))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server_addr from the config)")
	cmd.Flags().BoolVar(&einoDebug, "eino-debug", false, "Start the eino visual debug server")

	return cmd
}

// debugServer is the eino devops server as serve drives it.
type debugServer interface {
	Initialize(ctx context.Context) error
	IsEnabled() bool
	URL() string
}

// prepareServe starts the debug server, then builds the first engine, so
// every graph and chain compiled by the engine registers with the debug UI.
func (e *env) prepareServe(ctx context.Context, debugger debugServer, opts ...app.Option) (*app.Runtime, *prometheus.Registry, error) {
	if err := debugger.Initialize(ctx); err != nil {
		return nil, nil, err
	}
	if debugger.IsEnabled() {
		fmt.Fprintf(e.errOut, "eino debug UI at %s\n", debugger.URL())
	}

	mgrOpts := []config.ManagerOption{
		config.WithInitialConfig(e.cfg),
		config.WithLogger(e.logger),
	}
	if e.cfgPath != "" {
		mgrOpts = append(mgrOpts, config.WithConfigPath(e.cfgPath))
	}
	mgr, err := config.NewManager(mgrOpts...)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hook, err := metrics.NewHook(reg)
	if err != nil {
		return nil, nil, err
	}

	rtOpts := append([]app.Option{app.WithLogger(e.logger), app.WithHooks(hook)}, opts...)
	rt, err := app.NewRuntime(ctx, mgr, rtOpts...)
	if err != nil {
		return nil, nil, err
	}
	return rt, reg, nil
}
