package transcribe_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/hearscribe/internal/blobstore"
	"github.com/MrWong99/hearscribe/internal/hearing"
	"github.com/MrWong99/hearscribe/internal/locale"
	"github.com/MrWong99/hearscribe/internal/observe"
	"github.com/MrWong99/hearscribe/internal/progress"
	"github.com/MrWong99/hearscribe/internal/prompt"
	"github.com/MrWong99/hearscribe/internal/transcribe"
	"github.com/MrWong99/hearscribe/pkg/provider/llm"
	"github.com/MrWong99/hearscribe/pkg/provider/llm/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

type fixture struct {
	session *hearing.Session
	llm     *mock.Provider
	orch    *transcribe.Orchestrator
	events  <-chan hearing.Event
}

func newFixture(t *testing.T, files ...hearing.Upload) *fixture {
	t.Helper()

	blobs, err := blobstore.Open()
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = blobs.Close() })

	s := hearing.New(blobs, hearing.WithLanguage(locale.English), hearing.WithEventBuffer(1024))
	if len(files) > 0 {
		if _, err := s.SubmitFiles(context.Background(), files); err != nil {
			t.Fatalf("SubmitFiles: %v", err)
		}
	}

	set, err := prompt.New(locale.English, prompt.Overrides{})
	if err != nil {
		t.Fatalf("prompt.New: %v", err)
	}
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Mario Rossi – Judge"}}
	events, cancel := s.Subscribe()
	t.Cleanup(cancel)

	return &fixture{
		session: s,
		llm:     p,
		orch:    transcribe.New(s, p, prompt.NewHolder(set), transcribe.WithMetrics(m)),
		events:  events,
	}
}

func doc(name string) hearing.Upload {
	return hearing.Upload{Name: name, MediaType: "application/pdf", Body: strings.NewReader("%PDF " + name)}
}

func video(name string) hearing.Upload {
	return hearing.Upload{Name: name, MediaType: "video/mp4", Body: strings.NewReader("video " + name)}
}

func (f *fixture) drain() []hearing.Event {
	var out []hearing.Event
	for {
		select {
		case ev := <-f.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func progressOf(evs []hearing.Event) []progress.Progress {
	var out []progress.Progress
	for _, ev := range evs {
		if ev.Type == hearing.EventProgress {
			out = append(out, *ev.Progress)
		}
	}
	return out
}

func countType(evs []hearing.Event, typ hearing.EventType) int {
	n := 0
	for _, ev := range evs {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// ── scenarios ────────────────────────────────────────────────────────────────

func TestRun_DocumentAndTwoVideos(t *testing.T) {
	t.Parallel()

	f := newFixture(t, doc("minutes.pdf"), video("one.mp4"), video("two.mp4"))
	f.llm.StreamScripts = [][]llm.Chunk{
		{{Text: "Judge – "}, {Text: "first"}, {FinishReason: "stop"}},
		{{Text: "second"}},
	}
	if err := f.session.SetNotes("Audio is poor"); err != nil {
		t.Fatal(err)
	}
	f.drain()

	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "=== BEGIN one.mp4 ===\nJudge – first\n=== END one.mp4 ===\n" +
		"\n=== BEGIN two.mp4 ===\nsecond\n=== END two.mp4 ===\n"
	if got := f.session.Transcript(); got != want {
		t.Errorf("Transcript=\n%q\nwant\n%q", got, want)
	}

	// One Complete for the document, one stream per video.
	completes := f.llm.Completes()
	if len(completes) != 1 {
		t.Fatalf("Complete calls=%d, want 1", len(completes))
	}
	if p := completes[0].Req.Messages[0].Parts[0]; p.MIMEType != "application/pdf" || string(p.Data) != "%PDF minutes.pdf" {
		t.Errorf("participants call part=%+v", p)
	}
	streams := f.llm.Streams()
	if len(streams) != 2 {
		t.Fatalf("Stream calls=%d, want 2", len(streams))
	}
	for i, name := range []string{"one.mp4", "two.mp4"} {
		msg := streams[i].Req.Messages[0]
		if msg.Parts[0].Name != name {
			t.Errorf("stream %d video=%q, want %q", i, msg.Parts[0].Name, name)
		}
		text := msg.Text()
		if !strings.Contains(text, "Mario Rossi – Judge") || !strings.Contains(text, "Audio is poor") {
			t.Errorf("stream %d instruction lacks roster or notes:\n%s", i, text)
		}
	}

	evs := f.drain()
	prog := progressOf(evs)
	wantPct := []float64{0, 10, 10, 55, 100}
	if len(prog) != len(wantPct) {
		t.Fatalf("progress events=%+v", prog)
	}
	for i, p := range prog {
		if p.Percent != wantPct[i] {
			t.Errorf("progress[%d]=%v, want %v", i, p.Percent, wantPct[i])
		}
	}
	if prog[1].Label != "Participants identified. Transcribing 2 video(s)..." {
		t.Errorf("label at 10=%q", prog[1].Label)
	}
	if prog[3].Label != "Transcribing video 2 of 2: two.mp4" {
		t.Errorf("label at 55=%q", prog[3].Label)
	}
	if prog[4].Label != "Process complete" {
		t.Errorf("final label=%q", prog[4].Label)
	}
	if countType(evs, hearing.EventDone) != 1 || countType(evs, hearing.EventAlert) != 0 {
		t.Errorf("want one done and no alert, got %d done, %d alert",
			countType(evs, hearing.EventDone), countType(evs, hearing.EventAlert))
	}
	if countType(evs, hearing.EventFragment) < 3 {
		t.Errorf("fragments=%d, want at least 3", countType(evs, hearing.EventFragment))
	}
	if f.session.Processing() {
		t.Error("processing=true after run")
	}
}

func TestRun_MissingDocument(t *testing.T) {
	t.Parallel()

	f := newFixture(t, video("one.mp4"))
	f.drain()

	err := f.orch.Run(context.Background())
	var ve *hearing.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err=%v, want *ValidationError", err)
	}
	if len(f.llm.Completes())+len(f.llm.Streams()) != 0 {
		t.Error("gateway was called")
	}
	if f.session.Processing() {
		t.Error("processing=true")
	}
	if evs := f.drain(); len(evs) != 0 {
		t.Errorf("events published: %+v", evs)
	}
}

func TestRun_MidStreamFailureKeepsPartialOutput(t *testing.T) {
	t.Parallel()

	f := newFixture(t, doc("minutes.pdf"), video("one.mp4"), video("two.mp4"), video("three.mp4"))
	boom := errors.New("connection reset")
	f.llm.StreamScripts = [][]llm.Chunk{
		{{Text: "complete one"}},
		{{Text: "partial"}, mock.ErrorChunk(boom)},
		{{Text: "never"}},
	}
	f.drain()

	err := f.orch.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want wrapping %v", err, boom)
	}
	var se *llm.ServiceError
	if !errors.As(err, &se) {
		t.Errorf("err=%v, want *llm.ServiceError in chain", err)
	}

	want := "=== BEGIN one.mp4 ===\ncomplete one\n=== END one.mp4 ===\n" +
		"\n=== BEGIN two.mp4 ===\npartial"
	if got := f.session.Transcript(); got != want {
		t.Errorf("Transcript=\n%q\nwant\n%q", got, want)
	}
	if n := len(f.llm.Streams()); n != 2 {
		t.Errorf("stream calls=%d, want 2", n)
	}
	if f.session.Processing() {
		t.Error("processing=true after failure")
	}

	evs := f.drain()
	if countType(evs, hearing.EventAlert) != 1 {
		t.Errorf("alerts=%d, want 1", countType(evs, hearing.EventAlert))
	}
	if countType(evs, hearing.EventDone) != 0 {
		t.Error("done published after failure")
	}
	prog := progressOf(evs)
	last := prog[len(prog)-1]
	if last.Stage != progress.StageFailed || last.Percent >= 100 {
		t.Errorf("final progress=%+v, want failed below 100", last)
	}
}

func TestRun_ParticipantsFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, doc("minutes.pdf"), video("one.mp4"))
	f.llm.CompleteErr = llm.NewServiceError("mock", "complete", errors.New("unauthorized"))

	err := f.orch.Run(context.Background())
	var se *llm.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v, want *llm.ServiceError", err)
	}
	if n := len(f.llm.Streams()); n != 0 {
		t.Errorf("stream calls=%d, want 0", n)
	}
	if got := f.session.Transcript(); got != "" {
		t.Errorf("Transcript=%q, want empty", got)
	}
	if f.session.Processing() {
		t.Error("processing=true")
	}
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, doc("m.pdf"), video("a.mp4"), video("b.mp4"), video("c.mp4"), video("d.mp4"))
	f.llm.StreamChunks = []llm.Chunk{{Text: "x"}}
	f.drain()

	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	prev := -1.0
	for _, p := range progressOf(f.drain()) {
		if p.Percent < prev {
			t.Errorf("progress went from %v to %v", prev, p.Percent)
		}
		prev = p.Percent
	}
	if prev != 100 {
		t.Errorf("final progress=%v, want 100", prev)
	}
}

func TestRun_EmptyNotesUseNoneMarker(t *testing.T) {
	t.Parallel()

	f := newFixture(t, doc("m.pdf"), video("a.mp4"))
	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if text := f.llm.Streams()[0].Req.Messages[0].Text(); !strings.Contains(text, "Additional information: None") {
		t.Errorf("instruction lacks none marker:\n%s", text)
	}
}

func TestRun_ReplacesPreviousTranscript(t *testing.T) {
	t.Parallel()

	f := newFixture(t, doc("m.pdf"), video("a.mp4"))
	f.llm.StreamChunks = []llm.Chunk{{Text: "fresh"}}
	if err := f.session.SetTranscript("stale"); err != nil {
		t.Fatal(err)
	}
	if err := f.orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := f.session.Transcript(); strings.Contains(got, "stale") {
		t.Errorf("Transcript still contains previous text: %q", got)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, doc("m.pdf"), video("a.mp4"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.orch.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err=%v, want context.Canceled", err)
	}
	if f.session.Processing() {
		t.Error("processing=true after cancelled run")
	}
}

func TestStart_RejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, doc("m.pdf"), video("a.mp4"))
	f.llm.StreamChunks = []llm.Chunk{{Text: "slow"}}

	// Hold the guard so Start sees a running activity.
	if err := f.session.Begin(hearing.ActivityAnonymize); err != nil {
		t.Fatal(err)
	}
	if err := f.orch.Start(context.Background()); !errors.Is(err, hearing.ErrBusy) {
		t.Errorf("Start while busy err=%v, want ErrBusy", err)
	}
	f.session.End()

	if err := f.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := make(chan struct{})
	go func() {
		f.orch.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	if got := f.session.Transcript(); !strings.Contains(got, "slow") {
		t.Errorf("Transcript=%q", got)
	}
}
