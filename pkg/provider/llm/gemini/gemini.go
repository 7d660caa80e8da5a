// Package gemini implements llm.Provider on top of google.golang.org/genai
// using the Gemini API backend.
//
// Binary parts are sent inline as bytes tagged with their media type. Parts
// larger than the inline limit (default 18 MiB, just under the request size
// ceiling) are uploaded through the Files API first; the provider waits until
// the uploaded file becomes ACTIVE and then references it by URI. Uploaded
// files are deleted once the call finishes.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/MrWong99/hearscribe/pkg/provider/llm"
)

// Compile-time assertion that Provider satisfies llm.Provider.
var _ llm.Provider = (*Provider)(nil)

const (
	providerName = "gemini"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash"

	defaultInlineLimit  = 18 << 20
	defaultPollInterval = 2 * time.Second
)

// ErrFileProcessing is wrapped into a ServiceError when an uploaded file ends
// in the FAILED state.
var ErrFileProcessing = errors.New("gemini: uploaded file failed processing")

// ── Options ────────────────────────────────────────────────────────────────────

type config struct {
	baseURL      string
	httpClient   *http.Client
	inlineLimit  int
	pollInterval time.Duration
}

// Option is a functional option for configuring a Provider.
type Option func(*config)

// WithBaseURL overrides the Gemini API endpoint. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets the HTTP client used by the genai SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithInlineLimit sets the size in bytes above which binary parts are
// uploaded through the Files API. A negative value disables uploads.
func WithInlineLimit(n int) Option {
	return func(c *config) { c.inlineLimit = n }
}

// WithPollInterval sets how often the state of an uploaded file is polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements llm.Provider for the Gemini API.
type Provider struct {
	client       *genai.Client
	model        string
	inlineLimit  int
	pollInterval time.Duration
}

// New creates a Gemini provider. An empty model selects [DefaultModel].
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{
		inlineLimit:  defaultInlineLimit,
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Provider{
		client:       client,
		model:        model,
		inlineLimit:  cfg.inlineLimit,
		pollInterval: cfg.pollInterval,
	}, nil
}

// Model returns the configured model name.
func (p *Provider) Model() string { return p.model }

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.ModelCapabilities{
		ContextWindow:     1_048_576,
		MaxOutputTokens:   65_536,
		SupportsDocuments: true,
		SupportsVideo:     true,
		SupportsStreaming: true,
	}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents, cleanup, err := p.buildContents(ctx, req.Messages)
	defer cleanup()
	if err != nil {
		return nil, llm.NewServiceError(providerName, "complete", err)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, buildConfig(req))
	if err != nil {
		return nil, llm.NewServiceError(providerName, "complete", err)
	}

	text, finish := responseText(resp)
	if text == "" && finish == "" {
		return nil, llm.NewServiceError(providerName, "complete", llm.ErrEmptyResponse)
	}

	out := &llm.CompletionResponse{Content: text, FinishReason: finish}
	if um := resp.UsageMetadata; um != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
		}
	}
	return out, nil
}

// StreamCompletion implements llm.Provider. Uploads (if any) happen before
// the channel is returned, so an upload failure is reported as the initial
// error rather than as an error chunk.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	contents, cleanup, err := p.buildContents(ctx, req.Messages)
	if err != nil {
		cleanup()
		return nil, llm.NewServiceError(providerName, "stream", err)
	}

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		defer cleanup()

		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, buildConfig(req)) {
			if err != nil {
				select {
				case ch <- llm.Chunk{FinishReason: llm.FinishReasonError, Err: llm.NewServiceError(providerName, "stream", err)}:
				case <-ctx.Done():
				}
				return
			}

			text, finish := responseText(resp)
			if text == "" && finish == "" {
				continue
			}
			select {
			case ch <- llm.Chunk{Text: text, FinishReason: finish}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// buildConfig maps request-level settings onto a genai config. Returns nil
// when nothing needs overriding.
func buildConfig(req llm.CompletionRequest) *genai.GenerateContentConfig {
	if req.SystemPrompt == "" && req.Temperature == 0 {
		return nil
	}
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	return cfg
}

// buildContents converts messages to genai contents. The returned cleanup
// deletes any files uploaded along the way and is never nil.
func (p *Provider) buildContents(ctx context.Context, msgs []llm.Message) ([]*genai.Content, func(), error) {
	var uploaded []string
	cleanup := func() {
		for _, name := range uploaded {
			// Use a fresh context: the call context may already be cancelled.
			dctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := p.client.Files.Delete(dctx, name, nil); err != nil {
				slog.Warn("gemini: delete uploaded file", "name", name, "err", err)
			}
			cancel()
		}
	}

	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		parts := make([]*genai.Part, 0, len(m.Parts))
		for _, part := range m.Parts {
			if !part.IsBinary() {
				parts = append(parts, genai.NewPartFromText(part.Text))
				continue
			}
			if p.inlineLimit < 0 || len(part.Data) <= p.inlineLimit {
				parts = append(parts, genai.NewPartFromBytes(part.Data, part.MIMEType))
				continue
			}
			f, err := p.upload(ctx, part)
			if f != nil {
				uploaded = append(uploaded, f.Name)
			}
			if err != nil {
				return nil, cleanup, err
			}
			parts = append(parts, genai.NewPartFromURI(f.URI, f.MIMEType))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role(m.Role)))
	}
	return contents, cleanup, nil
}

// upload sends part through the Files API and blocks until the file is
// ACTIVE. The returned file is non-nil whenever the upload itself succeeded,
// so the caller can delete it even if processing failed.
func (p *Provider) upload(ctx context.Context, part llm.Part) (*genai.File, error) {
	f, err := p.client.Files.Upload(ctx, bytes.NewReader(part.Data), &genai.UploadFileConfig{
		MIMEType:    part.MIMEType,
		DisplayName: part.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %q: %w", part.Name, err)
	}
	slog.Debug("gemini: file uploaded", "name", f.Name, "display_name", part.Name, "bytes", len(part.Data))

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		switch f.State {
		case genai.FileStateActive:
			return f, nil
		case genai.FileStateFailed:
			return f, fmt.Errorf("%w: %s", ErrFileProcessing, part.Name)
		}
		select {
		case <-ctx.Done():
			return f, ctx.Err()
		case <-ticker.C:
		}
		next, err := p.client.Files.Get(ctx, f.Name, nil)
		if err != nil {
			return f, fmt.Errorf("poll %q: %w", f.Name, err)
		}
		f = next
	}
}

// responseText concatenates the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	cand := resp.Candidates[0]
	finish := strings.ToLower(string(cand.FinishReason))
	if cand.Content == nil {
		return "", finish
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String(), finish
}

// role maps our message roles onto genai roles. Gemini only knows "user" and
// "model"; system text travels in SystemInstruction.
func role(r string) genai.Role {
	if r == "assistant" {
		return genai.RoleModel
	}
	return genai.RoleUser
}
