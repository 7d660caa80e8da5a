// Command hearscribe is the entry point for the hearing transcription server
// and its headless CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/spf13/cobra"

	"github.com/MrWong99/hearscribe/internal/app"
	"github.com/MrWong99/hearscribe/internal/config"
	"github.com/MrWong99/hearscribe/internal/hearing"
	"github.com/MrWong99/hearscribe/internal/version"
	"github.com/MrWong99/hearscribe/pkg/provider/llm"
	"github.com/MrWong99/hearscribe/pkg/provider/llm/anyllm"
	"github.com/MrWong99/hearscribe/pkg/provider/llm/gemini"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd(&globals{})
	if err := root.Execute(); err != nil {
		var verr *hearing.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "hearscribe: %s\n", verr.Reason)
		} else {
			fmt.Fprintf(os.Stderr, "hearscribe: %v\n", err)
		}
		return 1
	}
	return 0
}

// globals is filled by the root command before any subcommand runs.
type globals struct {
	configPath string
	envFile    string

	cfg      *config.Config
	levelVar *slog.LevelVar
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "hearscribe",
		Short: "Transcribe court hearing videos with a multimodal model",
		Long: "hearscribe identifies the participants of a hearing from its minutes document " +
			"and transcribes the hearing videos in order, attributing every line to a speaker.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return g.load()
		},
	}
	root.Version = version.Version
	root.SetVersionTemplate(version.Full() + "\n")

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the config is read")

	serve := newServeCmd(g)
	root.RunE = serve.RunE

	root.AddCommand(serve)
	root.AddCommand(newTranscribeCmd(g))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}

// load reads the dotenv file and the config, then installs the logger.
func (g *globals) load() error {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", g.envFile, err)
		}
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", g.configPath)
		}
		return err
	}
	g.cfg = cfg

	g.levelVar = new(slog.LevelVar)
	g.levelVar.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(g.levelVar))
	return nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the text-only backends served through any-llm-go. The
// "gemini-text" name maps to its gemini backend so the native gemini
// provider keeps the plain name.
var anyllmBackends = map[string]string{
	"openai":      "openai",
	"anthropic":   "anthropic",
	"gemini-text": "gemini",
	"deepseek":    "deepseek",
	"mistral":     "mistral",
	"groq":        "groq",
	"llamacpp":    "llamacpp",
	"llamafile":   "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []gemini.Option
		if entry.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(entry.BaseURL))
		}
		switch mb := cfg.Transcription.InlineLimitMB; {
		case mb < 0:
			opts = append(opts, gemini.WithInlineLimit(-1))
		case mb > 0:
			opts = append(opts, gemini.WithInlineLimit(mb<<20))
		}
		if s := optString(entry.Options, "poll_interval"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("gemini: options.poll_interval: %w", err)
			}
			opts = append(opts, gemini.WithPollInterval(d))
		}
		return gemini.New(entry.APIKey, entry.Model, opts...)
	})

	for name, backend := range anyllmBackends {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// Ollama is local and needs no API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// buildProviders instantiates the configured providers. The text slot is
// optional and falls back to the LLM inside the app.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	p, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	if !p.Capabilities().SupportsVideo {
		slog.Warn("llm provider cannot read video, transcription will fail", "name", cfg.Providers.LLM.Name)
	}
	ps.LLM = p
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	if name := cfg.Providers.Text.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.Text)
		if err != nil {
			return nil, fmt.Errorf("create text provider %q: %w", name, err)
		}
		ps.Text = p
		slog.Info("provider created", "kind", "text", "name", name)
	}
	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       hearscribe startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Text", cfg.Providers.Text.Name, cfg.Providers.Text.Model)
	fmt.Printf("║  Language        : %-19s ║\n", cfg.Transcription.Language)
	fmt.Printf("║  Max upload (MB) : %-19d ║\n", cfg.Server.MaxUploadMB)
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "..."
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
