package model

import "time"

// Config holds the full application configuration
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Research ResearchConfig `yaml:"research" mapstructure:"research"`
	Cite     CiteConfig     `yaml:"cite" mapstructure:"cite"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// HTTPConfig tunes outbound HTTP for both providers
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// LLMConfig configures the chat-completion provider
type LLMConfig struct {
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Model         string `yaml:"model" mapstructure:"model"`                   // Research/orchestration model
	AnalysisModel string `yaml:"analysis_model" mapstructure:"analysis_model"` // Claim/basis/excerpt analysis model
	Timeout       int    `yaml:"timeout" mapstructure:"timeout"`               // Seconds, per call
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the web search/extract provider
type SearchConfig struct {
	APIKey     string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	Timeout    int     `yaml:"timeout" mapstructure:"timeout"` // Seconds, per call
	MaxResults int     `yaml:"max_results" mapstructure:"max_results"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst  int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ResearchConfig tunes the orchestration loop
type ResearchConfig struct {
	MaxIterations int           `yaml:"max_iterations" mapstructure:"max_iterations"`
	ChunkSize     int           `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkDelay    time.Duration `yaml:"chunk_delay" mapstructure:"chunk_delay"`
}

// CiteConfig tunes the citation-analysis pipeline
type CiteConfig struct {
	BatchSize      int           `yaml:"batch_size" mapstructure:"batch_size"`
	ExcerptWorkers int           `yaml:"excerpt_workers" mapstructure:"excerpt_workers"`
	MinClaimLength int           `yaml:"min_claim_length" mapstructure:"min_claim_length"`
	MergeGap       int           `yaml:"merge_gap" mapstructure:"merge_gap"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheMaxItems  int           `yaml:"cache_max_items" mapstructure:"cache_max_items"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "console" or "json"
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:         "gpt-4o",
			AnalysisModel: "gpt-4o-mini",
			Timeout:       120,
			MaxTokens:     4096,
		},
		Search: SearchConfig{
			Timeout:    60,
			MaxResults: 5,
			RatePerSec: 2,
			RateBurst:  4,
		},
		Research: ResearchConfig{
			MaxIterations: 50,
			ChunkSize:     10,
			ChunkDelay:    25 * time.Millisecond,
		},
		Cite: CiteConfig{
			BatchSize:      5,
			ExcerptWorkers: 3,
			MinClaimLength: 15,
			MergeGap:       10,
			CacheTTL:       30 * time.Minute,
			CacheMaxItems:  512,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
