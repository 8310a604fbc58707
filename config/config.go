package config

import "time"

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Store    StoreConfig    `mapstructure:"store"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Convert  ConvertConfig  `mapstructure:"convert"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StoreConfig struct {
	// Driver selects the document backend: file or redis.
	Driver    string      `mapstructure:"driver"`
	DocsDir   string      `mapstructure:"docs_dir"`
	JSONDir   string      `mapstructure:"json_dir"`
	SchemaDir string      `mapstructure:"schema_dir"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SearchConfig struct {
	// Provider is instant (DuckDuckGo Instant Answer) or lite (DuckDuckGo Lite).
	Provider   string        `mapstructure:"provider"`
	Cache      bool          `mapstructure:"cache"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
	InstantURL string        `mapstructure:"instant_url"`
	LiteURL    string        `mapstructure:"lite_url"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
	UserAgent string        `mapstructure:"user_agent"`
}

type ConvertConfig struct {
	// Mode is ai, html or heuristic.
	Mode string `mapstructure:"mode"`
}

type LLMConfig struct {
	// Provider is gemini (genai SDK), gemini-chat (Gemini as an eino chat
	// model) or openai (any OpenAI compatible endpoint).
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

type WorkflowConfig struct {
	MaxSearchResults  int `mapstructure:"max_search_results"`
	MaxDocsToDownload int `mapstructure:"max_docs_to_download"`
	ContextDocs       int `mapstructure:"context_docs"`
	RetrieveTopN      int `mapstructure:"retrieve_top_n"`
}
