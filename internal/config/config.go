// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for the hearscribe server.
package config

import (
	"time"

	"github.com/MrWong99/hearscribe/internal/locale"
	"github.com/MrWong99/hearscribe/internal/prompt"
)

// LogLevel controls log verbosity for the hearscribe server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults] to zero-valued fields.
const (
	DefaultListenAddr      = ":8080"
	DefaultMaxUploadMB     = 4096
	DefaultShutdownTimeout = 15 * time.Second
	DefaultTemperature     = 0.1
	DefaultBlobChunkKB     = 512
)

// Config is the root configuration structure for hearscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Prompts       PromptsConfig       `yaml:"prompts"`
	Storage       StorageConfig       `yaml:"storage"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadMB caps the size of one multipart upload request.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig selects the model backends. Each entry names a provider
// registered in the [Registry].
type ProvidersConfig struct {
	// LLM is the multimodal provider used for participant extraction and
	// video transcription. Required.
	LLM ProviderEntry `yaml:"llm"`

	// Text is an optional provider for anonymization and correction. When
	// its name is empty, LLM is used for those too.
	Text ProviderEntry `yaml:"text"`
}

// ProviderEntry is the common configuration block shared by all providers.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gemini-2.5-flash").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// TranscriptionConfig tunes the model calls.
type TranscriptionConfig struct {
	// Language selects labels, markers and built-in prompts. Hot-reloadable.
	Language locale.Language `yaml:"language"`

	// Temperature is the sampling temperature of every call. nil means
	// [DefaultTemperature].
	Temperature *float64 `yaml:"temperature"`

	// InlineLimitMB is the largest file sent inline to the gemini provider;
	// larger files go through the Files API. 0 keeps the provider default,
	// -1 always sends inline.
	InlineLimitMB int `yaml:"inline_limit_mb"`
}

// TemperatureOrDefault returns the configured temperature or [DefaultTemperature].
func (t TranscriptionConfig) TemperatureOrDefault() float64 {
	if t.Temperature == nil {
		return DefaultTemperature
	}
	return *t.Temperature
}

// PromptsConfig overrides the built-in prompt templates. Hot-reloadable.
// Templates use text/template syntax; see package prompt for field names.
type PromptsConfig struct {
	Participants  string `yaml:"participants"`
	Transcription string `yaml:"transcription"`
	Anonymize     string `yaml:"anonymize"`
	Correct       string `yaml:"correct"`
}

// Overrides converts the section to [prompt.Overrides].
func (p PromptsConfig) Overrides() prompt.Overrides {
	return prompt.Overrides{
		Participants:  p.Participants,
		Transcription: p.Transcription,
		Anonymize:     p.Anonymize,
		Correct:       p.Correct,
	}
}

// StorageConfig tunes the in-memory blob store.
type StorageConfig struct {
	// BlobChunkKB is the size of one stored chunk of an uploaded file.
	BlobChunkKB int `yaml:"blob_chunk_kb"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Transcription.Language == "" {
		cfg.Transcription.Language = locale.Default
	}
	if cfg.Storage.BlobChunkKB == 0 {
		cfg.Storage.BlobChunkKB = DefaultBlobChunkKB
	}
}
