package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "GATHER"

var defaults = map[string]any{
	"app.env":       "dev",
	"app.log_level": "info",

	"http.addr":          ":8080",
	"http.read_timeout":  15 * time.Second,
	"http.write_timeout": time.Duration(0),

	"store.driver":         "file",
	"store.docs_dir":       "docs",
	"store.json_dir":       "json",
	"store.schema_dir":     "schemas",
	"store.redis.addr":     "localhost:6379",
	"store.redis.password": "",
	"store.redis.db":       0,
	"store.redis.prefix":   "gatherinfo:",

	"search.provider":    "instant",
	"search.cache":       false,
	"search.timeout":     15 * time.Second,
	"search.max_results": 10,
	"search.instant_url": "https://api.duckduckgo.com/",
	"search.lite_url":    "https://lite.duckduckgo.com/lite/",

	"fetch.timeout":    30 * time.Second,
	"fetch.max_chars":  150_000,
	"fetch.max_bytes":  5 << 20,
	"fetch.user_agent": "Mozilla/5.0 (compatible; gatherinfo/1.0)",

	"convert.mode": "ai",

	"llm.provider":    "gemini",
	"llm.model":       "gemini-2.5-flash",
	"llm.api_key":     "",
	"llm.base_url":    "",
	"llm.timeout":     2 * time.Minute,
	"llm.max_retries": 3,
	"llm.base_delay":  500 * time.Millisecond,

	"workflow.max_search_results":   6,
	"workflow.max_docs_to_download": 3,
	"workflow.context_docs":         3,
	"workflow.retrieve_top_n":       8,
}

// Load reads .env, an optional config file and GATHER_* environment
// variables, in increasing order of precedence. An empty path looks for
// config.yaml in the working directory and ./configs.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	overrideFromConventionalEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideFromConventionalEnv fills still empty values from the variable
// names provider SDKs and docker setups usually export.
func overrideFromConventionalEnv(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "gemini", "gemini-chat":
			cfg.LLM.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		default:
			cfg.LLM.APIKey = firstEnv("API_KEY", "OPENAI_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.BaseURL = os.Getenv("BASE_URL")
	}
	// the default model name is a Gemini one
	if cfg.LLM.Provider == "openai" && cfg.LLM.Model == defaults["llm.model"] {
		cfg.LLM.Model = os.Getenv("MODEL")
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" && os.Getenv(envPrefix+"_STORE_REDIS_ADDR") == "" {
		cfg.Store.Redis.Addr = addr
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be file or redis", c.Store.Driver))
	}
	switch c.Search.Provider {
	case "instant", "lite":
	default:
		errs = append(errs, fmt.Errorf("search.provider %q must be instant or lite", c.Search.Provider))
	}
	switch c.Convert.Mode {
	case "ai", "html", "heuristic":
	default:
		errs = append(errs, fmt.Errorf("convert.mode %q must be ai, html or heuristic", c.Convert.Mode))
	}
	switch c.LLM.Provider {
	case "gemini", "gemini-chat", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q must be gemini, gemini-chat or openai", c.LLM.Provider))
	}

	positive := map[string]int{
		"fetch.max_chars":               c.Fetch.MaxChars,
		"search.max_results":            c.Search.MaxResults,
		"workflow.max_search_results":   c.Workflow.MaxSearchResults,
		"workflow.max_docs_to_download": c.Workflow.MaxDocsToDownload,
		"workflow.context_docs":         c.Workflow.ContextDocs,
		"workflow.retrieve_top_n":       c.Workflow.RetrieveTopN,
	}
	for name, n := range positive {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, n))
		}
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries))
	}
	if c.LLM.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("llm.base_delay must not be negative, got %s", c.LLM.BaseDelay))
	}

	return errors.Join(errs...)
}
