// Package transcribe runs the hearing transcription workflow.
//
// One run makes a single completion call that extracts the participants
// from the minutes document, then one streaming call per video, strictly in
// upload order. Fragments are appended to the session transcript as they
// arrive, each video wrapped in begin and end marker lines. Any failure
// stops the run, keeps the partial transcript and releases the session's
// processing guard.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

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

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithTemperature sets the sampling temperature of every call. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(o *Orchestrator) { o.temperature = temp }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator drives transcription runs against one session. Only one run
// can be active at a time; the session's guard enforces this.
type Orchestrator struct {
	session     *hearing.Session
	llm         llm.Provider
	prompts     PromptSource
	metrics     *observe.Metrics
	temperature float64

	wg sync.WaitGroup
}

// New returns an Orchestrator transcribing the files held by session.
func New(session *hearing.Session, provider llm.Provider, prompts PromptSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		session:     session,
		llm:         provider,
		prompts:     prompts,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Run performs a full transcription and blocks until it ends.
//
// It returns a [*hearing.ValidationError] when the document or videos are
// missing and [hearing.ErrBusy] when another activity is running; in both
// cases nothing was called and the session is unchanged. Otherwise it
// returns the gateway or context error that stopped the run, or nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.session.Begin(hearing.ActivityTranscribe); err != nil {
		return err
	}
	return o.run(ctx)
}

// Start is the asynchronous form of [Orchestrator.Run]. It returns as soon
// as the entry checks pass; the outcome is reported through session events.
// ctx must outlive the run, so callers serving HTTP should not pass the
// request context.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.session.Begin(hearing.ActivityTranscribe); err != nil {
		return err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_ = o.run(ctx)
	}()
	return nil
}

// Wait blocks until every run started with Start has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context) (err error) {
	ctx, span := observe.StartActivity(ctx, string(hearing.ActivityTranscribe))
	defer span.End()

	log := observe.Logger(ctx).With("run_id", uuid.NewString())
	cat := o.session.Catalog()
	tracker := progress.NewTracker()
	report := func(p progress.Progress) { o.session.SetProgress(tracker.Next(p)) }

	o.metrics.ActiveRuns.Add(ctx, 1)
	defer func() {
		o.metrics.ActiveRuns.Add(ctx, -1)
		if err != nil {
			log.Error("transcribe: run failed", "err", err)
			observe.Fail(span, err)
			o.metrics.RecordRun(ctx, string(hearing.ActivityTranscribe), "error")
			o.session.SetProgress(tracker.Fail(cat.FailedLabel()))
			o.session.End()
			o.session.Alert(cat.FailedLabel())
			return
		}
		o.metrics.RecordRun(ctx, string(hearing.ActivityTranscribe), "ok")
		o.session.End()
		o.session.Done(cat.Complete().Label)
	}()

	doc := o.session.Document()
	videos := o.session.Videos()
	prompts := o.prompts.Prompts()
	span.SetAttributes(attribute.Int("transcribe.videos", len(videos)))
	log.Info("transcribe: run started", "document", doc.Name, "videos", len(videos))

	report(cat.Analyzing())
	participants, err := o.participants(ctx, prompts, *doc)
	if err != nil {
		return err
	}
	log.Debug("transcribe: participants identified", "summary_len", len(participants))
	report(cat.ParticipantsIdentified(len(videos)))

	instruction, err := prompts.Transcription(participants, o.session.Notes())
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	for i, v := range videos {
		report(cat.Video(i, len(videos), v.Name))

		begin := cat.BeginMarker(v.Name) + "\n"
		if i > 0 {
			begin = "\n" + begin
		}
		o.session.Append(begin)

		if err := o.video(ctx, v, instruction); err != nil {
			return err
		}

		o.session.Append("\n" + cat.EndMarker(v.Name) + "\n")
		o.metrics.VideosTranscribed.Add(ctx, 1)
		log.Info("transcribe: video done", "index", i+1, "name", v.Name)
	}

	report(cat.Complete())
	log.Info("transcribe: run complete")
	return nil
}

// participants asks the model for the roster named in the minutes document.
func (o *Orchestrator) participants(ctx context.Context, prompts *prompt.Set, doc hearing.File) (string, error) {
	instruction, err := prompts.Participants()
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	data, err := o.session.ReadFile(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	resp, err := o.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: o.temperature,
		Messages: []llm.Message{
			llm.UserMessage(llm.BinaryPart(data, doc.MediaType, doc.Name), llm.TextPart(instruction)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: participants: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

// video streams the transcription of v into the session transcript.
func (o *Orchestrator) video(ctx context.Context, v hearing.File, instruction string) error {
	data, err := o.session.ReadFile(ctx, v)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	ch, err := o.llm.StreamCompletion(ctx, llm.CompletionRequest{
		Temperature: o.temperature,
		Messages: []llm.Message{
			llm.UserMessage(llm.BinaryPart(data, v.MediaType, v.Name), llm.TextPart(instruction)),
		},
	})
	if err != nil {
		return fmt.Errorf("transcribe: video %q: %w", v.Name, err)
	}

	var streamErr error
	for c := range ch {
		if c.FinishReason == llm.FinishReasonError {
			if streamErr == nil {
				streamErr = c.Err
				if streamErr == nil {
					streamErr = errors.New("stream terminated abnormally")
				}
			}
			continue
		}
		if c.Text != "" {
			o.session.Append(c.Text)
			o.metrics.StreamFragments.Add(ctx, 1)
		}
	}
	if streamErr != nil {
		return fmt.Errorf("transcribe: video %q: %w", v.Name, streamErr)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transcribe: video %q: %w", v.Name, err)
	}
	return nil
}
