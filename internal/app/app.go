// Package app wires all hearscribe subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and watches the config file, and Shutdown
// tears everything down in order.
//
// For testing, inject dependencies via functional options (WithBlobStore,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hearscribe/internal/blobstore"
	"github.com/MrWong99/hearscribe/internal/config"
	"github.com/MrWong99/hearscribe/internal/health"
	"github.com/MrWong99/hearscribe/internal/hearing"
	"github.com/MrWong99/hearscribe/internal/observe"
	"github.com/MrWong99/hearscribe/internal/postprocess"
	"github.com/MrWong99/hearscribe/internal/prompt"
	"github.com/MrWong99/hearscribe/internal/transcribe"
	"github.com/MrWong99/hearscribe/internal/web"
	"github.com/MrWong99/hearscribe/pkg/provider/llm"
)

// Providers holds one provider per slot. Populated by main.go via the
// config registry.
type Providers struct {
	// LLM reads the minutes document and the videos. Required.
	LLM llm.Provider

	// Text runs anonymization and correction. Nil means LLM is used.
	Text llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Injected or defaulted in New.
	metrics        *observe.Metrics
	metricsHandler http.Handler
	levelVar       *slog.LevelVar
	configPath     string
	blobs          *blobstore.Store

	// Subsystems, initialised in New and torn down in Shutdown.
	prompts *prompt.Holder
	session *hearing.Session
	orch    *transcribe.Orchestrator
	actions *postprocess.Actions
	handler http.Handler

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for [New].
type Option func(*App)

// WithBlobStore injects the blob store. The caller keeps ownership.
func WithBlobStore(s *blobstore.Store) Option {
	return func(a *App) { a.blobs = s }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets config reloads change the log level.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// WithConfigWatch makes Run watch path and apply live changes.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// New creates an App from cfg and providers. ctx bounds the lifetime of
// transcription runs started over HTTP.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		ready:     make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Blob store ────────────────────────────────────────────────────
	if err := a.initBlobs(); err != nil {
		return nil, fmt.Errorf("app: init blob store: %w", err)
	}
	unregister, err := a.metrics.ObserveStoredBlobs(a.blobs.Len)
	if err != nil {
		return nil, fmt.Errorf("app: observe blob store: %w", err)
	}
	// Stop observing before the store closes.
	a.closers = append([]func() error{unregister}, a.closers...)

	// ── 2. Prompts ───────────────────────────────────────────────────────
	set, err := prompt.New(cfg.Transcription.Language, cfg.Prompts.Overrides())
	if err != nil {
		return nil, fmt.Errorf("app: init prompts: %w", err)
	}
	a.prompts = prompt.NewHolder(set)

	// ── 3. Session, orchestrator and actions ─────────────────────────────
	a.session = hearing.New(a.blobs, hearing.WithLanguage(cfg.Transcription.Language))

	gateway := observe.InstrumentLLM(providers.LLM, providerLabel(cfg.Providers.LLM.Name, "llm"), a.metrics)
	text := gateway
	if providers.Text != nil {
		text = observe.InstrumentLLM(providers.Text, providerLabel(cfg.Providers.Text.Name, "text"), a.metrics)
	}

	temp := cfg.Transcription.TemperatureOrDefault()
	a.orch = transcribe.New(a.session, gateway, a.prompts,
		transcribe.WithTemperature(temp),
		transcribe.WithMetrics(a.metrics),
	)
	a.actions = postprocess.New(a.session, text, a.prompts,
		postprocess.WithTemperature(temp),
		postprocess.WithMetrics(a.metrics),
	)

	// ── 4. HTTP surface ──────────────────────────────────────────────────
	checks := health.New(
		health.Gateway("gateway", gateway, true),
		health.Gateway("text_gateway", text, false),
		health.Ping("blobstore", a.blobs),
	)
	webOpts := []web.Option{
		web.WithRunContext(ctx),
		web.WithHealth(checks),
		web.WithMetrics(a.metrics),
		web.WithMaxUpload(int64(cfg.Server.MaxUploadMB) << 20),
	}
	if a.metricsHandler != nil {
		webOpts = append(webOpts, web.WithMetricsHandler(a.metricsHandler))
	}
	a.handler = web.New(a.session, a.orch, a.actions, webOpts...).Handler()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initBlobs() error {
	if a.blobs != nil {
		return nil
	}
	var opts []blobstore.Option
	if kb := a.cfg.Storage.BlobChunkKB; kb > 0 {
		opts = append(opts, blobstore.WithChunkSize(kb<<10))
	}
	s, err := blobstore.Open(opts...)
	if err != nil {
		return err
	}
	a.blobs = s
	a.closers = append(a.closers, s.Close)
	return nil
}

func providerLabel(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Session returns the workspace session.
func (a *App) Session() *hearing.Session { return a.session }

// Orchestrator returns the transcription orchestrator.
func (a *App) Orchestrator() *transcribe.Orchestrator { return a.orch }

// Actions returns the post-processing actions.
func (a *App) Actions() *postprocess.Actions { return a.actions }

// Handler returns the instrumented HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Ready is closed once Run is listening.
func (a *App) Ready() <-chan struct{} { return a.ready }

// Addr returns the listening address, or nil before [App.Ready] is closed.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and, when configured, watches the config file. It blocks
// until ctx is cancelled or the server fails, then shuts the HTTP server
// down and waits for running transcriptions to stop.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()
	close(a.ready)

	srv := &http.Server{
		Handler:     a.handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.ApplyConfig)
		if err != nil {
			slog.Warn("config watcher disabled", "path", a.configPath, "err", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				w.Stop()
				return nil
			})
		}
	}

	err = g.Wait()
	a.orch.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// ApplyConfig applies the live-reloadable differences between old and new.
// It is the callback of the config watcher.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.LanguageChanged {
		a.session.SetLanguage(d.NewLanguage)
		slog.Info("language changed", "language", d.NewLanguage)
	}
	if d.PromptsChanged {
		set, err := prompt.New(new.Transcription.Language, new.Prompts.Overrides())
		if err != nil {
			slog.Warn("prompt reload rejected", "err", err)
		} else {
			a.prompts.Store(set)
			slog.Info("prompts reloaded", "language", set.Language())
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "keys", d.RestartRequired)
	}
}

// SlogLevel maps a config log level to its slog level.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown waits for running transcriptions and then runs the closers in
// order. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		done := make(chan struct{})
		go func() {
			a.orch.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded while waiting for transcription")
			shutdownErr = ctx.Err()
			return
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
