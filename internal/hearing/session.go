// Package hearing holds the single workspace session: the minutes document,
// the ordered hearing videos, user notes, the transcript buffer and the
// processing guard shared by transcription and post-processing.
//
// A Session is safe for concurrent use. Every mutation publishes an [Event]
// to subscribers, and every mutating entry point returns [ErrBusy] while an
// activity holds the guard.
package hearing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/hearscribe/internal/blobstore"
	"github.com/MrWong99/hearscribe/internal/locale"
	"github.com/MrWong99/hearscribe/internal/progress"
)

// Activity names the operation holding the processing guard.
type Activity string

const (
	ActivityNone       Activity = ""
	ActivityTranscribe Activity = "transcribe"
	ActivityAnonymize  Activity = "anonymize"
	ActivityCorrect    Activity = "correct"
)

// File describes one accepted upload. Its bytes live in the blob store.
type File struct {
	ID        string `json:"id"`
	Index     int    `json:"index,omitempty"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// Upload is one file offered to [Session.SubmitFiles].
type Upload struct {
	Name      string
	MediaType string
	Body      io.Reader
}

// IntakeResult reports what SubmitFiles did with each upload.
type IntakeResult struct {
	Document *File    `json:"document,omitempty"`
	Videos   []File   `json:"videos,omitempty"`
	Ignored  []string `json:"ignored,omitempty"`
}

// State is a point-in-time copy of the session.
type State struct {
	Document   *File             `json:"document,omitempty"`
	Videos     []File            `json:"videos"`
	Notes      string            `json:"notes"`
	Correction string            `json:"correction"`
	Transcript string            `json:"transcript"`
	Processing bool              `json:"processing"`
	Activity   Activity          `json:"activity,omitempty"`
	Progress   progress.Progress `json:"progress"`
	CanStart   bool              `json:"can_start"`
	Language   locale.Language   `json:"language"`
}

// Option configures a [Session].
type Option func(*Session)

// WithLanguage sets the language of labels and validation messages.
func WithLanguage(lang locale.Language) Option {
	return func(s *Session) { s.catalog = progress.For(lang) }
}

// WithEventBuffer sets the per-subscriber event buffer size.
func WithEventBuffer(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.eventBuffer = n
		}
	}
}

// Session is the workspace aggregate.
type Session struct {
	blobs *blobstore.Store

	mu          sync.Mutex
	catalog     progress.Catalog
	doc         *File
	videos      []File
	notes       string
	correction  string
	transcript  strings.Builder
	processing  bool
	activity    Activity
	prog        progress.Progress
	subs        map[int]chan Event
	nextSub     int
	eventBuffer int
}

// New creates an empty session whose file bytes are kept in blobs.
func New(blobs *blobstore.Store, opts ...Option) *Session {
	s := &Session{
		blobs:       blobs,
		catalog:     progress.For(locale.Default),
		prog:        progress.Progress{Stage: progress.StageIdle},
		subs:        make(map[int]chan Event),
		eventBuffer: defaultEventBuffer,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Catalog returns the label catalog for the current language.
func (s *Session) Catalog() progress.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// SetLanguage switches labels and validation messages. It is applied by the
// config watcher and does not count as a user mutation.
func (s *Session) SetLanguage(lang locale.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = progress.For(lang)
	s.publishStateLocked()
}

// ── Intake ───────────────────────────────────────────────────────────────────

// SubmitFiles accepts uploads in order. The first PDF becomes the document
// if none is held yet; videos are appended; everything else, including
// extra PDFs, is reported as ignored. If storing a file fails, the files
// accepted before it stay in the session and the error is returned.
//
// File bytes are stored without holding the session lock, so snapshots,
// text edits and other intakes proceed while a large upload is written.
// The files are committed in one step afterwards. A document that loses
// the race against a concurrent intake is reported as ignored, and nothing
// is committed if processing started in the meantime.
func (s *Session) SubmitFiles(ctx context.Context, uploads []Upload) (IntakeResult, error) {
	s.mu.Lock()
	busy, haveDoc := s.processing, s.doc != nil
	s.mu.Unlock()
	if busy {
		return IntakeResult{}, ErrBusy
	}

	var (
		staged   []stagedFile
		ignored  []string
		storeErr error
	)
	for _, u := range uploads {
		kind, mt := Classify(u.Name, u.MediaType)
		if kind == KindIgnored || (kind == KindDocument && haveDoc) {
			ignored = append(ignored, u.Name)
			continue
		}

		f := File{ID: uuid.NewString(), Name: u.Name, MediaType: mt}
		n, err := s.blobs.Put(ctx, f.ID, u.Body)
		if err != nil {
			storeErr = fmt.Errorf("hearing: store %q: %w", u.Name, err)
			break
		}
		f.Size = n
		if kind == KindDocument {
			haveDoc = true
		}
		staged = append(staged, stagedFile{kind: kind, file: f})
	}

	res, orphans, err := s.commitIntake(staged, ignored)
	s.discard(ctx, orphans)
	if err != nil {
		return IntakeResult{}, err
	}
	return res, storeErr
}

// stagedFile is an upload whose bytes are stored but which is not yet part
// of the session.
type stagedFile struct {
	kind Kind
	file File
}

// commitIntake adds staged files to the session and returns the IDs of
// stored blobs that were not committed.
func (s *Session) commitIntake(staged []stagedFile, ignored []string) (IntakeResult, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orphans []string
	if s.processing {
		for _, sf := range staged {
			orphans = append(orphans, sf.file.ID)
		}
		return IntakeResult{}, orphans, ErrBusy
	}

	res := IntakeResult{Ignored: ignored}
	for _, sf := range staged {
		f := sf.file
		switch {
		case sf.kind == KindDocument && s.doc != nil:
			orphans = append(orphans, f.ID)
			res.Ignored = append(res.Ignored, f.Name)
		case sf.kind == KindDocument:
			s.doc = &f
			res.Document = &f
		default:
			s.videos = append(s.videos, f)
			res.Videos = append(res.Videos, f)
		}
	}
	s.publishStateLocked()
	return res, orphans, nil
}

// discard deletes blobs that never became part of the session. It runs
// even when ctx is already cancelled.
func (s *Session) discard(ctx context.Context, ids []string) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range ids {
		if err := s.blobs.Delete(ctx, id); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			slog.Warn("hearing: discard uncommitted blob", "id", id, "err", err)
		}
	}
}

// Reset clears files, notes, correction, transcript and progress in one
// step and deletes the stored bytes.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return ErrBusy
	}

	var ids []string
	if s.doc != nil {
		ids = append(ids, s.doc.ID)
	}
	for _, v := range s.videos {
		ids = append(ids, v.ID)
	}

	s.doc = nil
	s.videos = nil
	s.notes = ""
	s.correction = ""
	s.transcript.Reset()
	s.prog = progress.Progress{Stage: progress.StageIdle}

	var errs []error
	for _, id := range ids {
		if err := s.blobs.Delete(ctx, id); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	s.publishStateLocked()
	if err := errors.Join(errs...); err != nil {
		slog.Warn("hearing: reset left blobs behind", "err", err)
	}
	return nil
}

// ReadFile returns the stored bytes of f.
func (s *Session) ReadFile(ctx context.Context, f File) ([]byte, error) {
	data, err := s.blobs.Get(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("hearing: read %q: %w", f.Name, err)
	}
	return data, nil
}

// ── User text ────────────────────────────────────────────────────────────────

// SetNotes stores the free-text additional information.
func (s *Session) SetNotes(text string) error {
	return s.mutate(func() { s.notes = text })
}

// SetCorrection stores the free-text correction instruction.
func (s *Session) SetCorrection(text string) error {
	return s.mutate(func() { s.correction = text })
}

// SetTranscript replaces the transcript with a user edit.
func (s *Session) SetTranscript(text string) error {
	return s.mutate(func() {
		s.transcript.Reset()
		s.transcript.WriteString(text)
	})
}

func (s *Session) mutate(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return ErrBusy
	}
	fn()
	s.publishStateLocked()
	return nil
}

// ── Processing guard ─────────────────────────────────────────────────────────

// Begin acquires the processing guard for a.
//
// For [ActivityTranscribe] it first checks that a document and at least one
// video are present, returning a [*ValidationError] otherwise, and clears the
// transcript once the guard is held.
func (s *Session) Begin(a Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a == ActivityTranscribe {
		switch {
		case s.doc == nil:
			return &ValidationError{Reason: s.catalog.MissingDocument}
		case len(s.videos) == 0:
			return &ValidationError{Reason: s.catalog.MissingVideo}
		}
	}
	if s.processing {
		return ErrBusy
	}

	s.processing = true
	s.activity = a
	if a == ActivityTranscribe {
		s.transcript.Reset()
	}
	s.publishStateLocked()
	return nil
}

// End releases the processing guard.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	s.activity = ActivityNone
	s.publishStateLocked()
}

// ── Run output ───────────────────────────────────────────────────────────────

// Append adds text to the transcript and publishes it as a fragment.
func (s *Session) Append(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.WriteString(text)
	s.publishLocked(Event{Type: EventFragment, Text: text})
}

// ReplaceTranscript swaps the whole transcript for text. Unlike
// SetTranscript it is meant for the activity holding the guard.
func (s *Session) ReplaceTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Reset()
	s.transcript.WriteString(text)
	s.publishStateLocked()
}

// SetProgress records and publishes p.
func (s *Session) SetProgress(p progress.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prog = p
	s.publishLocked(Event{Type: EventProgress, Progress: &p})
}

// Alert publishes a user-facing failure message.
func (s *Session) Alert(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(Event{Type: EventAlert, Message: message})
}

// Done publishes the end of a successful activity.
func (s *Session) Done(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(Event{Type: EventDone, Message: message})
}

// ── Accessors ────────────────────────────────────────────────────────────────

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Document returns the minutes document, or nil.
func (s *Session) Document() *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	d := *s.doc
	return &d
}

// Videos returns the videos in processing order.
func (s *Session) Videos() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexed(s.videos)
}

// Notes returns the additional information text.
func (s *Session) Notes() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes
}

// Correction returns the correction instruction.
func (s *Session) Correction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.correction
}

// Transcript returns the transcript buffer.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String()
}

// Processing reports whether an activity holds the guard.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

func (s *Session) snapshotLocked() State {
	st := State{
		Videos:     indexed(s.videos),
		Notes:      s.notes,
		Correction: s.correction,
		Transcript: s.transcript.String(),
		Processing: s.processing,
		Activity:   s.activity,
		Progress:   s.prog,
		CanStart:   s.doc != nil && len(s.videos) > 0 && !s.processing,
		Language:   s.catalog.Language,
	}
	if s.doc != nil {
		d := *s.doc
		d.Index = 1
		st.Document = &d
	}
	return st
}

func indexed(in []File) []File {
	out := make([]File, len(in))
	for i, f := range in {
		f.Index = i + 1
		out[i] = f
	}
	return out
}
