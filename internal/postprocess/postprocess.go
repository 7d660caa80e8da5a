// Package postprocess implements the text transformations applied to a
// finished transcript: anonymization and free-text correction.
//
// Each action makes exactly one completion call whose prompt embeds the
// whole transcript, and replaces the session transcript with the reply.
// On failure the transcript is left unchanged.
package postprocess

import (
	"context"
	"fmt"
	"strings"


	"github.com/MrWong99/hearscribe/internal/hearing"
	"github.com/MrWong99/hearscribe/internal/observe"
	"github.com/MrWong99/hearscribe/internal/progress"
	"github.com/MrWong99/hearscribe/internal/prompt"
	"github.com/MrWong99/hearscribe/pkg/provider/llm"
)

const defaultTemperature = 0.1

// PromptSource supplies the current prompt templates.
type PromptSource interface {
	Prompts() *prompt.Set
}

// Option is a functional option for configuring [Actions].
type Option func(*Actions)

// WithTemperature sets the LLM sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(a *Actions) { a.temperature = temp }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Actions) { a.metrics = m }
}

// Actions runs post-processing against one session. It is safe for
// concurrent use; the session guard serialises the actions themselves.
//
// Model selection follows the one-provider-per-model pattern: to run the
// actions on a cheaper text model, construct Actions with that provider.
type Actions struct {
	session     *hearing.Session
	llm         llm.Provider
	prompts     PromptSource
	metrics     *observe.Metrics
	temperature float64
}

// New returns Actions backed by provider.
func New(session *hearing.Session, provider llm.Provider, prompts PromptSource, opts ...Option) *Actions {
	a := &Actions{
		session:     session,
		llm:         provider,
		prompts:     prompts,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// CanAnonymize reports whether Anonymize would call the model.
func (a *Actions) CanAnonymize() bool {
	return strings.TrimSpace(a.session.Transcript()) != ""
}

// CanCorrect reports whether Correct has a transcript to work on. A blank
// correction is then reported by Correct itself.
func (a *Actions) CanCorrect() bool {
	return a.CanAnonymize()
}

// Anonymize replaces names and addresses in the transcript with initials and
// monetary amounts with a fixed placeholder. It does nothing when the
// transcript is empty. It returns [hearing.ErrBusy] if another activity is
// running.
func (a *Actions) Anonymize(ctx context.Context) error {
	if !a.CanAnonymize() {
		return nil
	}
	cat := a.session.Catalog()
	return a.apply(ctx, hearing.ActivityAnonymize, cat.Anonymizing(), cat.Anonymized(),
		func(set *prompt.Set, transcript string) (string, error) {
			return set.Anonymize(transcript)
		})
}

// Correct applies the session's correction instruction to the transcript. It
// does nothing when the transcript is empty and returns a
// [*hearing.ValidationError] when the correction is blank. It returns
// [hearing.ErrBusy] if another activity is running.
func (a *Actions) Correct(ctx context.Context) error {
	if !a.CanCorrect() {
		return nil
	}
	cat := a.session.Catalog()
	if strings.TrimSpace(a.session.Correction()) == "" {
		return &hearing.ValidationError{Reason: cat.MissingCorrection}
	}
	return a.apply(ctx, hearing.ActivityCorrect, cat.Correcting(), cat.Corrected(),
		func(set *prompt.Set, transcript string) (string, error) {
			return set.Correct(transcript, a.session.Correction())
		})
}

type renderFunc func(set *prompt.Set, transcript string) (string, error)

func (a *Actions) apply(ctx context.Context, act hearing.Activity, started, finished progress.Progress, render renderFunc) (err error) {
	if err := a.session.Begin(act); err != nil {
		return err
	}

	ctx, span := observe.StartActivity(ctx, string(act))
	defer span.End()

	log := observe.Logger(ctx).With("activity", string(act))
	cat := a.session.Catalog()
	tracker := progress.NewTracker()

	a.metrics.ActiveRuns.Add(ctx, 1)
	defer func() {
		a.metrics.ActiveRuns.Add(ctx, -1)
		if err != nil {
			log.Error("postprocess: action failed", "err", err)
			observe.Fail(span, err)
			a.metrics.RecordRun(ctx, string(act), "error")
			a.session.SetProgress(tracker.Fail(cat.FailedLabel()))
			a.session.End()
			a.session.Alert(cat.FailedLabel())
			return
		}
		a.metrics.RecordRun(ctx, string(act), "ok")
		a.session.End()
		a.session.Done(finished.Label)
	}()

	a.session.SetProgress(tracker.Next(started))

	// The guard is held, so the transcript cannot change until End.
	transcript := a.session.Transcript()
	instruction, err := render(a.prompts.Prompts(), transcript)
	if err != nil {
		return fmt.Errorf("postprocess: %s: %w", act, err)
	}

	resp, err := a.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: a.temperature,
		Messages:    []llm.Message{llm.UserMessage(llm.TextPart(instruction))},
	})
	if err != nil {
		return fmt.Errorf("postprocess: %s: %w", act, err)
	}

	var out string
	if resp != nil {
		out = stripFence(resp.Content)
	}
	if out == "" {
		return fmt.Errorf("postprocess: %s: %w", act, llm.ErrEmptyResponse)
	}

	a.session.ReplaceTranscript(out)
	a.session.SetProgress(tracker.Next(finished))
	log.Info("postprocess: action complete", "before_len", len(transcript), "after_len", len(out))
	return nil
}

// stripFence removes a markdown code fence (```, ```text, ```markdown, ...)
// that some models wrap around plain-text output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s, "```")
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = strings.TrimPrefix(body, "```")
	}
	return strings.TrimSpace(body)
}
