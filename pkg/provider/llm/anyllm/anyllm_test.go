package anyllm

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/hearscribe/pkg/provider/llm"
)

// ── convertMessage ────────────────────────────────────────────────────────────

func TestConvertMessage_JoinsTextParts(t *testing.T) {
	t.Parallel()

	m := llm.UserMessage(llm.TextPart("Anonimizza il testo."), llm.TextPart("Testo: Mario Rossi"))
	got, err := convertMessage(m)
	if err != nil {
		t.Fatalf("convertMessage: %v", err)
	}
	if got.Role != "user" {
		t.Errorf("expected role user, got %q", got.Role)
	}
	if want := "Anonimizza il testo.\n\nTesto: Mario Rossi"; got.ContentString() != want {
		t.Errorf("expected content %q, got %q", want, got.ContentString())
	}
}

func TestConvertMessage_RejectsBinary(t *testing.T) {
	t.Parallel()

	m := llm.UserMessage(llm.TextPart("x"), llm.BinaryPart([]byte{0, 1}, "video/mp4", "udienza.mp4"))
	_, err := convertMessage(m)
	if !errors.Is(err, llm.ErrUnsupportedContent) {
		t.Fatalf("expected ErrUnsupportedContent, got %v", err)
	}
	if !strings.Contains(err.Error(), "udienza.mp4") {
		t.Errorf("error should name the file, got %v", err)
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams_SystemPromptFirst(t *testing.T) {
	t.Parallel()

	p := &Provider{name: "anyllm/openai", model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Sei un assistente.",
		Temperature:  0.2,
		MaxTokens:    512,
		Messages:     []llm.Message{llm.UserMessage(llm.TextPart("ciao"))},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if params.Model != "gpt-4o" {
		t.Errorf("model=%q, want gpt-4o", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" {
		t.Errorf("first message role=%q, want system", params.Messages[0].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.2 {
		t.Errorf("temperature not propagated: %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("max tokens not propagated: %v", params.MaxTokens)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	t.Parallel()

	p := &Provider{name: "anyllm/openai", model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage(llm.TextPart("ciao"))},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if params.Temperature != nil {
		t.Errorf("temperature should be nil, got %v", *params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("max tokens should be nil, got %v", *params.MaxTokens)
	}
}

// ── New ───────────────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend string
		model   string
	}{
		{"empty backend", "", "gpt-4o"},
		{"empty model", "openai", ""},
		{"unknown backend", "watson", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.backend, tt.model); err == nil {
				t.Errorf("New(%q, %q) expected error", tt.backend, tt.model)
			}
		})
	}
}

func TestCapabilities_TextOnly(t *testing.T) {
	t.Parallel()

	for _, model := range []string{"gpt-4o", "claude-3-5-sonnet-latest", "gemini-2.5-flash", "llama3"} {
		caps := (&Provider{model: model}).Capabilities()
		if caps.SupportsVideo || caps.SupportsDocuments {
			t.Errorf("%s: text-only adapter reports media support: %+v", model, caps)
		}
		if !caps.SupportsStreaming {
			t.Errorf("%s: SupportsStreaming=false", model)
		}
	}
}
