package config_test

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/hearscribe/internal/config"
)

func TestValidate_RequiresLLMProvider(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err == nil {
		t.Fatal("expected error for config without providers.llm, got nil")
	}
	if !strings.Contains(err.Error(), "providers.llm.name") {
		t.Errorf("error should mention providers.llm.name, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := "server:\n  log_level: bananas\nproviders:\n  llm:\n    name: gemini\n"
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidLanguage(t *testing.T) {
	t.Parallel()
	yaml := "providers:\n  llm:\n    name: gemini\ntranscription:\n  language: fr\n"
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unsupported language, got nil")
	}
	if !strings.Contains(err.Error(), "transcription.language") {
		t.Errorf("error should mention transcription.language, got: %v", err)
	}
}

func TestValidate_TemperatureRange(t *testing.T) {
	t.Parallel()
	yaml := "providers:\n  llm:\n    name: gemini\ntranscription:\n  temperature: 2.5\n"
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "temperature") {
		t.Fatalf("expected temperature error, got %v", err)
	}
}

func TestValidate_BrokenPromptTemplate(t *testing.T) {
	t.Parallel()
	yaml := "providers:\n  llm:\n    name: gemini\nprompts:\n  correct: \"{{.Transcript\"\n"
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unparsable prompt template, got nil")
	}
	if !strings.Contains(err.Error(), "prompts") {
		t.Errorf("error should mention prompts, got: %v", err)
	}
}

func TestValidate_BlobChunkRange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kb      int
		wantErr bool
	}{
		{kb: 64},
		{kb: 512},
		{kb: 513, wantErr: true},
		{kb: 1024, wantErr: true},
		{kb: 999999, wantErr: true},
		{kb: -1, wantErr: true},
	}
	for _, tt := range tests {
		yaml := fmt.Sprintf("providers:\n  llm:\n    name: gemini\nstorage:\n  blob_chunk_kb: %d\n", tt.kb)
		_, err := config.LoadFromReader(strings.NewReader(yaml))
		if tt.wantErr && (err == nil || !strings.Contains(err.Error(), "blob_chunk_kb")) {
			t.Errorf("blob_chunk_kb %d: expected blob_chunk_kb error, got %v", tt.kb, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("blob_chunk_kb %d: unexpected error: %v", tt.kb, err)
		}
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
  max_upload_mb: -1
transcription:
  inline_limit_mb: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log_level", "max_upload_mb", "providers.llm.name", "inline_limit_mb"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_UnknownProviderOnlyWarns(t *testing.T) {
	t.Parallel()
	yaml := "providers:\n  llm:\n    name: homegrown\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names should only warn, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, slot := range []string{"llm", "text"} {
		names, ok := config.ValidProviderNames[slot]
		if !ok {
			t.Errorf("missing slot %q", slot)
			continue
		}
		if !slices.Contains(names, "gemini") {
			t.Errorf("slot %q should list gemini, got %v", slot, names)
		}
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "example-key")
	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Providers.LLM.Name != "gemini" || cfg.Providers.LLM.APIKey != "example-key" {
		t.Errorf("llm = %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.Text.Name != "" {
		t.Errorf("text provider = %q, want empty", cfg.Providers.Text.Name)
	}
	if cfg.Server.ShutdownTimeout != config.DefaultShutdownTimeout {
		t.Errorf("shutdown_timeout = %v, want %v", cfg.Server.ShutdownTimeout, config.DefaultShutdownTimeout)
	}
}
