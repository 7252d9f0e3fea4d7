package types

import "time"

// HTTPConfig holds shared HTTP settings used by collaborators that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "contentforge/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AIProvider selects the generation backend.
type AIProvider string

const (
	ProviderOpenAI AIProvider = "openai"
	ProviderClaude AIProvider = "claude"
)

// AIConfig holds settings for the generation collaborator.
type AIConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Provider selects openai or claude.
	Provider AIProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "gpt-4o", "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key. Usually loaded from .secrets/.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (Azure OpenAI, proxies, tests).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Temperature is the default sampling temperature (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens caps a single completion (default 4000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// MaxRetries is the number of retry attempts for transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RequestsPerSecond throttles generation calls; zero disables the limiter.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// SearchConfig holds settings for the search collaborator.
type SearchConfig struct {
	// TopK is the number of passages requested per query (default 5).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// TopKPerSectionQuery is the passage count for section research queries (default 2).
	TopKPerSectionQuery int `json:"top_k_per_section_query" yaml:"top_k_per_section_query" mapstructure:"top_k_per_section_query"`

	// MinScore drops passages scoring below it (default 0.0).
	MinScore float64 `json:"min_score" yaml:"min_score" mapstructure:"min_score"`

	// CorpusDB is the SQLite database holding the indexed corpus.
	CorpusDB string `json:"corpus_db" yaml:"corpus_db" mapstructure:"corpus_db"`

	// CorpusDir holds YAML source documents for `contentforge index`.
	CorpusDir string `json:"corpus_dir" yaml:"corpus_dir" mapstructure:"corpus_dir"`

	// RedisURL enables the search result cache when set.
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" mapstructure:"redis_url"`

	// CacheTTL is how long cached search results live (default 15m).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// GenerationConfig holds settings for planning, drafting, and assembly.
type GenerationConfig struct {
	// MaxWords is the default overall word budget (default 2000).
	MaxWords int `json:"max_words" yaml:"max_words" mapstructure:"max_words"`

	// MaxSectionWords bounds a single section body (default 5000).
	MaxSectionWords int `json:"max_section_words" yaml:"max_section_words" mapstructure:"max_section_words"`

	// Concurrency is the number of sections processed in parallel (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// CitationStyle is the default style: APA, MLA, Chicago, or IEEE.
	CitationStyle CitationStyle `json:"citation_style" yaml:"citation_style" mapstructure:"citation_style"`

	// FactCheck enables the post-assembly fact-check pass.
	FactCheck bool `json:"fact_check" yaml:"fact_check" mapstructure:"fact_check"`

	// OutputDir receives exported report projects (e.g. "output/reports/").
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// PublishConfig holds Microsoft Graph and filesystem publishing settings.
type PublishConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// TenantID, ClientID and ClientSecret are the Azure AD app credentials.
	TenantID     string `json:"tenant_id" yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID     string `json:"client_id" yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty" mapstructure:"client_secret"`

	// DriveID is the SharePoint document library receiving uploads.
	DriveID string `json:"drive_id" yaml:"drive_id" mapstructure:"drive_id"`

	// Folder is the default folder within the drive (e.g. "Reports/2025").
	Folder string `json:"folder" yaml:"folder" mapstructure:"folder"`

	// Channel is the default Teams destination as "<team-id>/<channel-id>".
	// Empty skips the announcement.
	Channel string `json:"channel" yaml:"channel" mapstructure:"channel"`

	// Dir is the filesystem publishing root used when Graph is not configured.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// Graph reports whether Graph credentials are present.
func (p PublishConfig) Graph() bool {
	return p.TenantID != "" && p.ClientID != "" && p.ClientSecret != ""
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console (default console).
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// ServerConfig configures `contentforge serve`.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// RequestTimeout bounds a single generate request (default 10m).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
}

// Config groups all settings.
type Config struct {
	AI         AIConfig         `json:"ai" yaml:"ai" mapstructure:"ai"`
	Search     SearchConfig     `json:"search" yaml:"search" mapstructure:"search"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Publish    PublishConfig    `json:"publish" yaml:"publish" mapstructure:"publish"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
}

// DefaultConfig returns the settings used when no config file or env override is present.
func DefaultConfig() Config {
	return Config{
		AI: AIConfig{
			HTTPConfig:  HTTPConfig{Timeout: 120 * time.Second, UserAgent: "contentforge/0.1"},
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o",
			Temperature: 0.7,
			MaxTokens:   4000,
			MaxRetries:  3,
		},
		Search: SearchConfig{
			TopK:                5,
			TopKPerSectionQuery: 2,
			MinScore:            0.0,
			CorpusDB:            "output/corpus/corpus.db",
			CorpusDir:           "corpus",
			CacheTTL:            15 * time.Minute,
		},
		Generation: GenerationConfig{
			MaxWords:        2000,
			MaxSectionWords: 5000,
			Concurrency:     4,
			CitationStyle:   StyleAPA,
			OutputDir:       "output/reports",
		},
		Publish: PublishConfig{
			HTTPConfig: HTTPConfig{Timeout: 60 * time.Second, UserAgent: "contentforge/0.1"},
			Dir:        "output/published",
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 10 * time.Minute,
		},
	}
}
