package debug

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/internal/logging"
)

func TestDisabledDebuggerIsNoop(t *testing.T) {
	cfg := config.Defaults()
	d := NewEinoDebugger(cfg, logging.NewNop())

	assert.False(t, d.IsEnabled())
	assert.Empty(t, d.URL())
	assert.NoError(t, d.Initialize(context.Background()))
}

func TestDebuggerURL(t *testing.T) {
	cfg := config.Defaults()
	cfg.EinoDebugEnabled = true
	cfg.EinoDebugPort = 6000
	assert.Equal(t, "http://localhost:6000", NewEinoDebugger(cfg, nil).URL())
	assert.False(t, NewEinoDebugger(nil, nil).IsEnabled())
}
