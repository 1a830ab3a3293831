package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/internal/logging"
	"github.com/dyike/CortexResearch/pkg/app"
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

// env is the state shared by every command. Tests preset cfg and deps.
type env struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	deps    app.Deps
	out     io.Writer
	errOut  io.Writer
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&env{})
}

func newRootCmd(e *env) *cobra.Command {
	var (
		logLevel string
		debug    bool
	)

	rootCmd := &cobra.Command{
		Use:   "cortex",
		Short: "CortexResearch - equity research memos with a risk review loop",
		Long: `CortexResearch gathers market data, technical indicators and news for a ticker,
drafts an investment memo and revises it until the risk manager approves or the
revision cap is reached.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load(cmd, logLevel, debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode(cmd.Context(), e)
		},
	}

	rootCmd.PersistentFlags().StringVar(&e.cfgPath, "config", "", "Configuration file path (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")

	rootCmd.AddCommand(newAnalyzeCmd(e))
	rootCmd.AddCommand(newServeCmd(e))
	rootCmd.AddCommand(newConfigCmd(e))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (e *env) load(cmd *cobra.Command, logLevel string, debug bool) error {
	e.out, e.errOut = cmd.OutOrStdout(), cmd.ErrOrStderr()

	if e.cfg == nil {
		if e.cfgPath != "" {
			cfg, err := config.Load(e.cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			e.cfg = cfg
		} else {
			e.cfg = config.DefaultConfig()
		}
	}
	if logLevel != "" {
		e.cfg.LogLevel = logLevel
	}
	if debug {
		e.cfg.Debug = true
		e.cfg.LogLevel = "debug"
	}

	if e.logger == nil {
		logger, err := logging.New(e.cfg.LogLevel, e.cfg.LogFormat, e.errOut)
		if err != nil {
			return err
		}
		e.logger = logger
	}
	if err := e.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CortexResearch v%s\n", Version)
		},
	}
}

func newConfigCmd(e *env) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Encode("config."+format, masked(*e.cfg))
			if err != nil {
				return err
			}
			_, err = e.out.Write(data)
			return err
		},
	}
	showCmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	configCmd.AddCommand(showCmd)

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and report missing credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(e.out, e.cfg)
		},
	})

	return configCmd
}

func masked(cfg config.Config) config.Config {
	for _, s := range []*string{
		&cfg.OpenAIAPIKey, &cfg.DeepSeekAPIKey, &cfg.AnthropicAPIKey, &cfg.FinnhubAPIKey,
		&cfg.LongportAppKey, &cfg.LongportAppSecret, &cfg.LongportAccessToken,
	} {
		if *s != "" {
			*s = "****"
		}
	}
	return cfg
}

// credentialWarnings lists the keys the selected providers need but lack.
func credentialWarnings(cfg *config.Config) []string {
	var warnings []string
	switch strings.ToLower(cfg.LLMProvider) {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			warnings = append(warnings, "OPENAI_API_KEY is not set")
		}
	case "deepseek":
		if cfg.DeepSeekAPIKey == "" {
			warnings = append(warnings, "DEEPSEEK_API_KEY is not set")
		}
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			warnings = append(warnings, "ANTHROPIC_API_KEY is not set")
		}
	}
	if strings.EqualFold(cfg.NewsProvider, "finnhub") && cfg.FinnhubAPIKey == "" {
		warnings = append(warnings, "FINNHUB_API_KEY is not set")
	}
	if strings.EqualFold(cfg.MarketProvider, "longport") &&
		(cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "") {
		warnings = append(warnings, "Longport credentials are incomplete")
	}
	return warnings
}

func validateConfig(w io.Writer, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(w, "configuration is invalid:")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(w, "  - %s\n", line)
		}
		return fmt.Errorf("invalid configuration")
	}
	warnings := credentialWarnings(cfg)
	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if len(warnings) == 0 {
		fmt.Fprintln(w, "configuration is valid")
	} else {
		fmt.Fprintf(w, "configuration is valid with %d warning(s)\n", len(warnings))
	}
	return nil
}
