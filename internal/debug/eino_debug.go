// Package debug starts the eino visual debug server for the LLM chains.
package debug

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/CortexResearch/config"
)

type EinoDebugger struct {
	config *config.Config
	logger *slog.Logger
}

func NewEinoDebugger(cfg *config.Config, logger *slog.Logger) *EinoDebugger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EinoDebugger{config: cfg, logger: logger}
}

// Initialize starts the devops server when enabled. It must run before the
// chains are compiled for them to show up in the debug UI.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.IsEnabled() {
		return nil
	}

	d.logger.Debug("initializing eino debug plugin", "port", d.config.EinoDebugPort)
	if err := devops.Init(ctx, devops.WithDevServerPort(strconv.Itoa(d.config.EinoDebugPort))); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.logger.Info("eino debug server started", "url", d.URL())
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config != nil && d.config.EinoDebugEnabled
}

func (d *EinoDebugger) URL() string {
	if !d.IsEnabled() {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.config.EinoDebugPort)
}
