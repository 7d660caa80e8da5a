// Package web serves the hearscribe single-page UI and its JSON/WebSocket
// API on top of a [hearing.Session].
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrWong99/hearscribe/internal/export"
	"github.com/MrWong99/hearscribe/internal/health"
	"github.com/MrWong99/hearscribe/internal/hearing"
	"github.com/MrWong99/hearscribe/internal/observe"
)

//go:embed static
var static embed.FS

// multipartMemory is the part of a multipart upload kept in memory; the
// rest is spooled to temporary files by net/http.
const multipartMemory = 32 << 20

// Transcriber starts an asynchronous transcription run.
type Transcriber interface {
	Start(ctx context.Context) error
}

// PostProcessor runs the text-only actions on the transcript.
type PostProcessor interface {
	CanAnonymize() bool
	CanCorrect() bool
	Anonymize(ctx context.Context) error
	Correct(ctx context.Context) error
}

// Option configures a [Server].
type Option func(*Server)

// WithMaxUpload caps the body size of POST /api/files in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithRunContext sets the context passed to [Transcriber.Start]. It must
// live as long as the process, not a single request.
func WithRunContext(ctx context.Context) Option {
	return func(s *Server) { s.runCtx = ctx }
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMetrics sets the instruments used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server holds the HTTP handlers.
type Server struct {
	session     *hearing.Session
	transcriber Transcriber
	actions     PostProcessor

	runCtx         context.Context
	maxUpload      int64
	health         *health.Handler
	metricsHandler http.Handler
	metrics        *observe.Metrics
}

// New creates a Server for session.
func New(session *hearing.Session, transcriber Transcriber, actions PostProcessor, opts ...Option) *Server {
	s := &Server{
		session:     session,
		transcriber: transcriber,
		actions:     actions,
		runCtx:      context.Background(),
		maxUpload:   4 << 30,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed and instrumented handler:
//
//	GET    /                     single-page UI
//	GET    /api/session          state snapshot
//	DELETE /api/session          reset
//	POST   /api/files            multipart intake ("files" field)
//	PUT    /api/notes            {"text": ...}
//	PUT    /api/correction       {"text": ...}
//	GET    /api/transcript       text/plain
//	PUT    /api/transcript       user edit while idle
//	GET    /api/transcript.docx  Word export
//	POST   /api/transcribe       start a run
//	POST   /api/anonymize        anonymize names, addresses and amounts
//	POST   /api/correct          apply the correction instruction
//	GET    /api/events           WebSocket event stream
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/session", s.handleSnapshot)
	mux.HandleFunc("DELETE /api/session", s.handleReset)
	mux.HandleFunc("POST /api/files", s.handleFiles)
	mux.HandleFunc("PUT /api/notes", s.handleText(s.session.SetNotes))
	mux.HandleFunc("PUT /api/correction", s.handleText(s.session.SetCorrection))
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("PUT /api/transcript", s.handleText(s.session.SetTranscript))
	mux.HandleFunc("GET /api/transcript.docx", s.handleDocx)
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/anonymize", s.handleAction(s.actions.CanAnonymize, s.actions.Anonymize))
	mux.HandleFunc("POST /api/correct", s.handleAction(s.actions.CanCorrect, s.actions.Correct))
	mux.HandleFunc("GET /api/events", s.handleEvents)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return observe.Middleware(s.metrics)(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, static, "static/index.html")
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(r.Context()); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	uploads := make([]hearing.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "cannot read "+fh.Filename)
			return
		}
		defer f.Close()
		uploads = append(uploads, hearing.Upload{
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Body:      f,
		})
	}

	res, err := s.session.SubmitFiles(r.Context(), uploads)
	if errors.Is(err, hearing.ErrBusy) {
		s.writeErr(w, r, err)
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("web: store upload", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	observe.Logger(r.Context()).Info("web: files submitted",
		"videos", len(res.Videos),
		"document", res.Document != nil,
		"ignored", len(res.Ignored),
	)
	writeJSON(w, http.StatusOK, res)
}

// textBody is the JSON body of the PUT text endpoints.
type textBody struct {
	Text string `json:"text"`
}

func (s *Server) handleText(set func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body textBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := set(body.Text); err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.session.Snapshot())
	}
}

func (s *Server) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := export.Text(w, s.session.Transcript()); err != nil {
		slog.Warn("web: write transcript", "err", err)
	}
}

func (s *Server) handleDocx(w http.ResponseWriter, r *http.Request) {
	transcript := s.session.Transcript()
	if transcript == "" {
		writeError(w, http.StatusNotFound, s.session.Catalog().MissingTranscript)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", `attachment; filename="transcript.docx"`)
	if err := export.WriteDocx(w, s.session.Catalog().TranscriptTitle, transcript); err != nil {
		observe.Logger(r.Context()).Error("web: docx export failed", "err", err)
	}
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.transcriber.Start(s.runCtx); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.session.Snapshot())
}

func (s *Server) handleAction(can func() bool, run func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !can() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := run(r.Context()); err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.session.Snapshot())
	}
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeErr maps domain errors to status codes. Anything unrecognised is a
// gateway failure.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *hearing.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Reason)
	case errors.Is(err, hearing.ErrBusy):
		writeError(w, http.StatusConflict, s.session.Catalog().Busy)
	default:
		observe.Logger(r.Context()).Warn("web: request failed", "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("web: encode response", "err", err)
	}
}
