package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/hearscribe/internal/config"
	"github.com/MrWong99/hearscribe/internal/locale"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  max_upload_mb: 512
  shutdown_timeout: 30s

providers:
  llm:
    name: gemini
    api_key: g-test
    model: gemini-2.5-pro
  text:
    name: openai
    api_key: sk-test
    model: gpt-4o

transcription:
  language: en
  temperature: 0.3
  inline_limit_mb: 8

prompts:
  anonymize: "Mask amounts in: {{.Transcript}}"

storage:
  blob_chunk_kb: 512
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Server.MaxUploadMB != 512 {
		t.Errorf("server.max_upload_mb: got %d, want 512", cfg.Server.MaxUploadMB)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("server.shutdown_timeout: got %s, want 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Providers.LLM.Name != "gemini" || cfg.Providers.LLM.Model != "gemini-2.5-pro" {
		t.Errorf("providers.llm: got %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.Text.Name != "openai" {
		t.Errorf("providers.text.name: got %q, want %q", cfg.Providers.Text.Name, "openai")
	}
	if cfg.Transcription.Language != locale.English {
		t.Errorf("transcription.language: got %q, want %q", cfg.Transcription.Language, locale.English)
	}
	if got := cfg.Transcription.TemperatureOrDefault(); got != 0.3 {
		t.Errorf("transcription.temperature: got %.2f, want 0.3", got)
	}
	if cfg.Transcription.InlineLimitMB != 8 {
		t.Errorf("transcription.inline_limit_mb: got %d, want 8", cfg.Transcription.InlineLimitMB)
	}
	if cfg.Prompts.Anonymize == "" {
		t.Error("prompts.anonymize: got empty override")
	}
	if cfg.Storage.BlobChunkKB != 512 {
		t.Errorf("storage.blob_chunk_kb: got %d, want 512", cfg.Storage.BlobChunkKB)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("providers:\n  llm:\n    name: gemini\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr=%q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level=%q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Server.ShutdownTimeout != config.DefaultShutdownTimeout {
		t.Errorf("shutdown_timeout=%s, want %s", cfg.Server.ShutdownTimeout, config.DefaultShutdownTimeout)
	}
	if cfg.Transcription.Language != locale.Default {
		t.Errorf("language=%q, want %q", cfg.Transcription.Language, locale.Default)
	}
	if got := cfg.Transcription.TemperatureOrDefault(); got != config.DefaultTemperature {
		t.Errorf("temperature=%.2f, want %.2f", got, config.DefaultTemperature)
	}
	if cfg.Storage.BlobChunkKB != config.DefaultBlobChunkKB {
		t.Errorf("blob_chunk_kb=%d, want %d", cfg.Storage.BlobChunkKB, config.DefaultBlobChunkKB)
	}
}

func TestLoadFromReader_ZeroTemperatureIsKept(t *testing.T) {
	t.Parallel()
	yaml := "providers:\n  llm:\n    name: gemini\ntranscription:\n  temperature: 0\n"
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Transcription.TemperatureOrDefault(); got != 0 {
		t.Errorf("temperature=%.2f, want 0", got)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := "providers:\n  llm:\n    name: gemini\nwebhooks: []\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown top-level key, got nil")
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("HEARSCRIBE_TEST_KEY", "secret-from-env")
	yaml := "providers:\n  llm:\n    name: gemini\n    api_key: ${HEARSCRIBE_TEST_KEY}\n"
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "secret-from-env" {
		t.Errorf("api_key=%q, want %q", cfg.Providers.LLM.APIKey, "secret-from-env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load("/nonexistent/hearscribe.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
