// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by collaborators that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the search collaborator.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults caps the merged candidate list (default 10).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// EnableArxiv controls whether the arXiv backend is used.
	EnableArxiv bool `json:"enable_arxiv" yaml:"enable_arxiv" mapstructure:"enable_arxiv"`

	// EnableSemanticScholar controls whether the Semantic Scholar backend is used.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar" mapstructure:"enable_semantic_scholar"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// ArxivInterval is the minimum spacing between arXiv API calls (default 3s).
	ArxivInterval time.Duration `json:"arxiv_interval" yaml:"arxiv_interval" mapstructure:"arxiv_interval"`

	// AbstractLimit truncates candidate abstracts, in characters (default 300).
	AbstractLimit int `json:"abstract_limit" yaml:"abstract_limit" mapstructure:"abstract_limit"`

	// Parallelism caps the backends queried at once (default 2).
	Parallelism int `json:"parallelism" yaml:"parallelism" mapstructure:"parallelism"`
}

// AcquisitionConfig holds settings for PDF downloads.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PapersDir is the base directory for papers (contains raw/ and metadata/).
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`
}

// ConversionBackend identifies the PDF-to-text tool.
type ConversionBackend string

const (
	BackendPdftotext  ConversionBackend = "pdftotext"
	BackendMarkitdown ConversionBackend = "markitdown"
)

// ConversionConfig holds settings for PDF text extraction.
type ConversionConfig struct {
	// Backend selects the conversion tool: pdftotext or markitdown.
	Backend ConversionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// MarkitdownImage is the container image used by the markitdown backend.
	MarkitdownImage string `json:"markitdown_image" yaml:"markitdown_image" mapstructure:"markitdown_image"`
}

// AIConfig holds shared settings for collaborators that call a hosted model.
type AIConfig struct {
	// Provider selects the API: "openai" or "anthropic".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint, for proxies and compatible servers.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// GenerationConfig holds settings for script generation.
type GenerationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Temperature is the sampling temperature (default 0.4).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens bounds the completion length (default 8192).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// MaxPaperTokens bounds the paper text placed in the prompt (default 12000).
	MaxPaperTokens int `json:"max_paper_tokens" yaml:"max_paper_tokens" mapstructure:"max_paper_tokens"`

	// HistoryTokenBudget bounds the conversation history sent with the
	// prompt (default 2000).
	HistoryTokenBudget int `json:"history_token_budget" yaml:"history_token_budget" mapstructure:"history_token_budget"`
}

// SynthesisConfig holds settings for text-to-speech.
type SynthesisConfig struct {
	// Model is the speech model (default "tts-1-hd").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the OpenAI API key used for speech.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the speech endpoint host.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// OutputDir receives one directory per session holding podcast.wav.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// VoiceTable lists the voices available for each gender, in preference order.
type VoiceTable struct {
	Male    []string `json:"male" yaml:"male" mapstructure:"male"`
	Female  []string `json:"female" yaml:"female" mapstructure:"female"`
	Neutral []string `json:"neutral" yaml:"neutral" mapstructure:"neutral"`
}

// For returns the voices for g.
func (v VoiceTable) For(g Gender) []string {
	switch g {
	case GenderMale:
		return v.Male
	case GenderFemale:
		return v.Female
	default:
		return v.Neutral
	}
}

// PipelineConfig holds the orchestrator policy.
type PipelineConfig struct {
	// HistoryWindow is the number of recent Memory entries offered to the
	// generation stage (default 10).
	HistoryWindow int `json:"history_window" yaml:"history_window" mapstructure:"history_window"`

	// WordsPerMinute converts script length to spoken duration (default 160).
	WordsPerMinute int `json:"words_per_minute" yaml:"words_per_minute" mapstructure:"words_per_minute"`

	// DurationTolerance is the accepted relative deviation of the estimated
	// duration from the requested one (default 0.35).
	DurationTolerance float64 `json:"duration_tolerance" yaml:"duration_tolerance" mapstructure:"duration_tolerance"`

	// MaxSpeakers bounds SpeakerCount (default 6).
	MaxSpeakers int `json:"max_speakers" yaml:"max_speakers" mapstructure:"max_speakers"`

	// AllowPartialAudio lets synthesis finish with the utterances produced
	// before a terminal failure.
	AllowPartialAudio bool `json:"allow_partial_audio" yaml:"allow_partial_audio" mapstructure:"allow_partial_audio"`

	// Pause is the silence inserted between utterances (default 300ms).
	Pause time.Duration `json:"pause" yaml:"pause" mapstructure:"pause"`

	// RetryDelay is the wait before the single generation or synthesis retry.
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`

	// Voices maps genders to speech voices.
	Voices VoiceTable `json:"voices" yaml:"voices" mapstructure:"voices"`
}

// StoreConfig holds settings for session persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig holds settings for the HTTP front end.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a logrus level name (default "info").
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// File, when set, receives a rotated copy of the log.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`

	MaxSizeMB  int `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Config groups every setting. It is built once at startup and treated as
// read-only afterwards.
type Config struct {
	Log         LogConfig         `json:"log" yaml:"log" mapstructure:"log"`
	Search      SearchConfig      `json:"search" yaml:"search" mapstructure:"search"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition" mapstructure:"acquisition"`
	Conversion  ConversionConfig  `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Generation  GenerationConfig  `json:"generation" yaml:"generation" mapstructure:"generation"`
	Synthesis   SynthesisConfig   `json:"synthesis" yaml:"synthesis" mapstructure:"synthesis"`
	Pipeline    PipelineConfig    `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Store       StoreConfig       `json:"store" yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `json:"server" yaml:"server" mapstructure:"server"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	httpCfg := HTTPConfig{Timeout: 60 * time.Second, UserAgent: "paper-podcast/0.1"}
	return Config{
		Log: LogConfig{Level: "info", Format: "text", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Search: SearchConfig{
			HTTPConfig:    httpCfg,
			MaxResults:    10,
			EnableArxiv:   true,
			ArxivInterval: 3 * time.Second,
			AbstractLimit: 300,
			Parallelism:   2,
		},
		Acquisition: AcquisitionConfig{HTTPConfig: httpCfg, PapersDir: "papers"},
		Conversion:  ConversionConfig{Backend: BackendPdftotext, MarkitdownImage: "markitdown:latest"},
		Generation: GenerationConfig{
			AIConfig:           AIConfig{Provider: "openai", Model: "gpt-4o-mini"},
			Temperature:        0.4,
			MaxTokens:          8192,
			MaxPaperTokens:     12000,
			HistoryTokenBudget: 2000,
		},
		Synthesis: SynthesisConfig{Model: "tts-1-hd", OutputDir: "output/audio"},
		Pipeline: PipelineConfig{
			HistoryWindow:     10,
			WordsPerMinute:    160,
			DurationTolerance: 0.35,
			MaxSpeakers:       6,
			Pause:             300 * time.Millisecond,
			RetryDelay:        time.Second,
			Voices: VoiceTable{
				Male:    []string{"onyx", "echo", "fable", "ash"},
				Female:  []string{"nova", "shimmer", "coral"},
				Neutral: []string{"alloy", "sage"},
			},
		},
		Store:  StoreConfig{Path: "data/sessions.db"},
		Server: ServerConfig{Addr: ":8080"},
	}
}
