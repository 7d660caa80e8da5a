package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/hearscribe/internal/blobstore"
	"github.com/MrWong99/hearscribe/internal/locale"
	"github.com/MrWong99/hearscribe/internal/prompt"
)

// maxBlobChunkKB is the largest chunk the blob store accepts.
const maxBlobChunkKB = blobstore.MaxChunkSize >> 10

// ValidProviderNames lists known provider names per provider slot.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":  {"gemini"},
	"text": {"gemini", "openai", "anthropic", "gemini-text", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// from the environment, applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", cfg.Server.MaxUploadMB))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Providers
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("text", cfg.Providers.Text.Name)

	// Transcription
	if lang := cfg.Transcription.Language; lang != "" && !lang.IsValid() {
		errs = append(errs, fmt.Errorf("transcription.language %q is invalid; valid values: %s, %s", lang, locale.Italian, locale.English))
	}
	if t := cfg.Transcription.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("transcription.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Transcription.InlineLimitMB < -1 {
		errs = append(errs, fmt.Errorf("transcription.inline_limit_mb %d is invalid; use -1 to always inline", cfg.Transcription.InlineLimitMB))
	}

	// Prompts must parse before they can be hot-swapped in.
	if _, err := prompt.New(cfg.Transcription.Language, cfg.Prompts.Overrides()); err != nil {
		errs = append(errs, fmt.Errorf("prompts: %w", err))
	}

	// Storage
	if kb := cfg.Storage.BlobChunkKB; kb < 0 || kb > maxBlobChunkKB {
		errs = append(errs, fmt.Errorf("storage.blob_chunk_kb %d is out of range [1, %d]", kb, maxBlobChunkKB))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given slot.
func validateProviderName(slot, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[slot]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"slot", slot,
		"name", name,
		"known", known,
	)
}
