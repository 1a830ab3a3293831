package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir" yaml:"project_dir"`
	ResultsDir   string `json:"results_dir" yaml:"results_dir"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	DataCacheDir string `json:"data_cache_dir" yaml:"data_cache_dir"`

	// offline runs the template drafter and the rule reviewer, no LLM.
	LLMProvider   string  `json:"llm_provider" yaml:"llm_provider"`
	DeepThinkLLM  string  `json:"deep_think_llm" yaml:"deep_think_llm"`
	QuickThinkLLM string  `json:"quick_think_llm" yaml:"quick_think_llm"`
	BackendURL    string  `json:"backend_url" yaml:"backend_url"`
	Temperature   float32 `json:"temperature" yaml:"temperature"`
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens"`

	MaxRevisions        int  `json:"max_revisions" yaml:"max_revisions"`
	MaxRecurLimit       int  `json:"max_recursion_limit" yaml:"max_recursion_limit"`
	StageTimeoutSeconds int  `json:"stage_timeout_seconds" yaml:"stage_timeout_seconds"`
	RunTimeoutSeconds   int  `json:"run_timeout_seconds" yaml:"run_timeout_seconds"`
	ParallelFetch       bool `json:"parallel_fetch" yaml:"parallel_fetch"`
	HaltOnFatal         bool `json:"halt_on_fatal" yaml:"halt_on_fatal"`
	NewsLimit           int  `json:"news_limit" yaml:"news_limit"`
	HistoryDays         int  `json:"history_days" yaml:"history_days"`

	MarketProvider string `json:"market_provider" yaml:"market_provider"`
	NewsProvider   string `json:"news_provider" yaml:"news_provider"`

	CacheEnabled    bool   `json:"cache_enabled" yaml:"cache_enabled"`
	CacheBackend    string `json:"cache_backend" yaml:"cache_backend"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
	RedisAddr       string `json:"redis_addr" yaml:"redis_addr"`

	ServerAddr string `json:"server_addr" yaml:"server_addr"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
	LogFormat  string `json:"log_format" yaml:"log_format"`
	Debug      bool   `json:"debug" yaml:"debug"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled" yaml:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port" yaml:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key" yaml:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret" yaml:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token" yaml:"longport_access_token"`

	// AI Model API Keys
	OpenAIAPIKey    string `json:"openai_api_key" yaml:"openai_api_key"`
	DeepSeekAPIKey  string `json:"deepseek_api_key" yaml:"deepseek_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key" yaml:"anthropic_api_key"`

	FinnhubAPIKey string `json:"finnhub_api_key" yaml:"finnhub_api_key"`
}

var (
	LLMProviders    = []string{"openai", "deepseek", "anthropic", "offline"}
	MarketProviders = []string{"yahoo", "longport"}
	NewsProviders   = []string{"google", "finnhub"}
	CacheBackends   = []string{"file", "redis"}
)

// DefaultConfig returns the defaults overridden by .env and the process
// environment.
func DefaultConfig() *Config {
	cfg := Defaults()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

// Defaults returns the built-in configuration without looking at the
// environment.
func Defaults() *Config {
	currentDir, _ := os.Getwd()

	return &Config{
		ProjectDir:   currentDir,
		ResultsDir:   filepath.Join(currentDir, "results"),
		DataDir:      filepath.Join(currentDir, "data"),
		DataCacheDir: filepath.Join(currentDir, "data", "cache"),

		LLMProvider:   "deepseek",
		DeepThinkLLM:  "deepseek-chat",
		QuickThinkLLM: "deepseek-chat",
		Temperature:   0.2,
		MaxTokens:     2000,

		MaxRevisions:        2,
		MaxRecurLimit:       100,
		StageTimeoutSeconds: 90,
		RunTimeoutSeconds:   600,
		NewsLimit:           5,
		HistoryDays:         180,

		MarketProvider: "yahoo",
		NewsProvider:   "google",

		CacheEnabled:    true,
		CacheBackend:    "file",
		CacheTTLMinutes: 60,
		RedisAddr:       "localhost:6379",

		ServerAddr: ":8000",
		LogLevel:   "info",
		LogFormat:  "text",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

func (c *Config) loadFromEnv() {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if v, err := strconv.ParseBool(val); err == nil {
				*dst = v
			}
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if v, err := strconv.Atoi(val); err == nil {
				*dst = v
			}
		}
	}

	setString("PROJECT_DIR", &c.ProjectDir)
	setString("RESULTS_DIR", &c.ResultsDir)
	setString("DATA_DIR", &c.DataDir)
	setString("DATA_CACHE_DIR", &c.DataCacheDir)

	setString("LLM_PROVIDER", &c.LLMProvider)
	setString("DEEP_THINK_LLM", &c.DeepThinkLLM)
	setString("QUICK_THINK_LLM", &c.QuickThinkLLM)
	setString("BACKEND_URL", &c.BackendURL)
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		if v, err := strconv.ParseFloat(val, 32); err == nil {
			c.Temperature = float32(v)
		}
	}
	setInt("LLM_MAX_TOKENS", &c.MaxTokens)

	setInt("MAX_REVISIONS", &c.MaxRevisions)
	setInt("MAX_RECURSION_LIMIT", &c.MaxRecurLimit)
	setInt("STAGE_TIMEOUT_SECONDS", &c.StageTimeoutSeconds)
	setInt("RUN_TIMEOUT_SECONDS", &c.RunTimeoutSeconds)
	setBool("PARALLEL_FETCH", &c.ParallelFetch)
	setBool("HALT_ON_FATAL", &c.HaltOnFatal)
	setInt("NEWS_LIMIT", &c.NewsLimit)
	setInt("HISTORY_DAYS", &c.HistoryDays)

	setString("MARKET_PROVIDER", &c.MarketProvider)
	setString("NEWS_PROVIDER", &c.NewsProvider)

	setBool("CACHE_ENABLED", &c.CacheEnabled)
	setString("CACHE_BACKEND", &c.CacheBackend)
	setInt("CACHE_TTL_MINUTES", &c.CacheTTLMinutes)
	setString("REDIS_ADDR", &c.RedisAddr)

	setString("SERVER_ADDR", &c.ServerAddr)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_FORMAT", &c.LogFormat)
	setBool("CORTEX_DEBUG", &c.Debug)

	setBool("EINO_DEBUG_ENABLED", &c.EinoDebugEnabled)
	setInt("EINO_DEBUG_PORT", &c.EinoDebugPort)

	setString("LONGPORT_APP_KEY", &c.LongportAppKey)
	setString("LONGPORT_APP_SECRET", &c.LongportAppSecret)
	setString("LONGPORT_ACCESS_TOKEN", &c.LongportAccessToken)

	setString("OPENAI_API_KEY", &c.OpenAIAPIKey)
	setString("DEEPSEEK_API_KEY", &c.DeepSeekAPIKey)
	setString("ANTHROPIC_API_KEY", &c.AnthropicAPIKey)
	setString("FINNHUB_API_KEY", &c.FinnhubAPIKey)
}

// Validate checks enumerations and numeric ranges.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, val string, allowed []string) {
		if !slices.Contains(allowed, strings.ToLower(val)) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %s", field, val, strings.Join(allowed, ", ")))
		}
	}
	oneOf("llm_provider", c.LLMProvider, LLMProviders)
	oneOf("market_provider", c.MarketProvider, MarketProviders)
	oneOf("news_provider", c.NewsProvider, NewsProviders)
	if c.CacheEnabled {
		oneOf("cache_backend", c.CacheBackend, CacheBackends)
	}
	if c.MaxRevisions < 0 {
		errs = append(errs, fmt.Errorf("max_revisions: must be >= 0, got %d", c.MaxRevisions))
	}
	if c.MaxRecurLimit < 0 {
		errs = append(errs, fmt.Errorf("max_recursion_limit: must be >= 0, got %d", c.MaxRecurLimit))
	}
	if c.StageTimeoutSeconds < 0 || c.RunTimeoutSeconds < 0 {
		errs = append(errs, errors.New("timeouts must be >= 0"))
	}
	if c.NewsLimit <= 0 {
		errs = append(errs, fmt.Errorf("news_limit: must be > 0, got %d", c.NewsLimit))
	}
	if c.HistoryDays < 30 {
		errs = append(errs, fmt.Errorf("history_days: need at least 30, got %d", c.HistoryDays))
	}
	return errors.Join(errs...)
}

func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutSeconds) * time.Second
}

func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
