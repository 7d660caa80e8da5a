package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/hearscribe/internal/app"
	"github.com/MrWong99/hearscribe/internal/config"
	"github.com/MrWong99/hearscribe/internal/export"
	"github.com/MrWong99/hearscribe/internal/hearing"
	"github.com/MrWong99/hearscribe/internal/progress"
)

type transcribeFlags struct {
	minutes    string
	notes      string
	notesFile  string
	anonymize  bool
	correction string
	out        string
	docx       string
}

func newTranscribeCmd(g *globals) *cobra.Command {
	var f transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe --minutes FILE [flags] VIDEO...",
		Short: "Transcribe hearing videos without starting the server",
		Long: "Runs one transcription on the given minutes document and videos, in the order given, " +
			"then the optional anonymization and correction. Progress goes to stderr; the transcript " +
			"goes to stdout unless --out or --docx is set.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transcribe(cmd.Context(), g, f, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&f.minutes, "minutes", "m", "", "minutes document of the hearing (PDF)")
	cmd.Flags().StringVarP(&f.notes, "notes", "n", "", "notes for the transcriber, e.g. how to spell a name")
	cmd.Flags().StringVar(&f.notesFile, "notes-file", "", "read the notes from a file")
	cmd.Flags().BoolVarP(&f.anonymize, "anonymize", "a", false, "anonymize the transcript after transcription")
	cmd.Flags().StringVar(&f.correction, "correct", "", "correction instruction applied after transcription")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the transcript to this text file")
	cmd.Flags().StringVar(&f.docx, "docx", "", "write the transcript to this Word document")
	_ = cmd.MarkFlagRequired("minutes")
	cmd.MarkFlagsMutuallyExclusive("notes", "notes-file")

	return cmd
}

func transcribe(parent context.Context, g *globals, f transcribeFlags, videos []string, stdout, stderr io.Writer) error {
	// An explicitly blank correction is refused before any model is called.
	if f.correction != "" && strings.TrimSpace(f.correction) == "" {
		return &hearing.ValidationError{Reason: progress.For(g.cfg.Transcription.Language).MissingCorrection}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg, g.cfg)
	providers, err := buildProviders(g.cfg, reg)
	if err != nil {
		return err
	}

	application, err := app.New(ctx, g.cfg, providers)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	session := application.Session()

	if err := submit(ctx, session, append([]string{f.minutes}, videos...)); err != nil {
		return err
	}
	notes := f.notes
	if f.notesFile != "" {
		data, err := os.ReadFile(f.notesFile)
		if err != nil {
			return fmt.Errorf("read notes: %w", err)
		}
		notes = string(data)
	}
	if err := session.SetNotes(notes); err != nil {
		return err
	}

	events, unsubscribe := session.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printEvents(stderr, events)
	}()
	defer func() {
		unsubscribe()
		<-printed
	}()

	if err := application.Orchestrator().Run(ctx); err != nil {
		// Whatever was transcribed before the failure is still written out.
		if session.Transcript() != "" {
			if werr := writeTranscript(session, f, stdout); werr != nil {
				slog.Warn("write partial transcript", "err", werr)
			}
		}
		return err
	}
	if f.anonymize {
		if err := application.Actions().Anonymize(ctx); err != nil {
			return err
		}
	}
	if f.correction != "" {
		if err := session.SetCorrection(f.correction); err != nil {
			return err
		}
		if err := application.Actions().Correct(ctx); err != nil {
			return err
		}
	}

	return writeTranscript(session, f, stdout)
}

// submit stores the given paths in the session the way a browser upload
// would: the first PDF becomes the minutes document and videos keep their
// order.
func submit(ctx context.Context, session *hearing.Session, paths []string) error {
	uploads := make([]hearing.Upload, 0, len(paths))
	for _, p := range paths {
		file, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		uploads = append(uploads, hearing.Upload{
			Name:      filepath.Base(p),
			MediaType: mime.TypeByExtension(filepath.Ext(p)),
			Body:      file,
		})
	}

	res, err := session.SubmitFiles(ctx, uploads)
	if err != nil {
		return fmt.Errorf("store inputs: %w", err)
	}
	for _, name := range res.Ignored {
		slog.Warn("input ignored, neither a PDF nor a video", "name", name)
	}
	return nil
}

// printEvents writes progress labels and alerts until events is closed.
func printEvents(w io.Writer, events <-chan hearing.Event) {
	var last string
	for ev := range events {
		switch ev.Type {
		case hearing.EventProgress:
			if ev.Progress == nil || ev.Progress.Label == last {
				continue
			}
			last = ev.Progress.Label
			fmt.Fprintf(w, "[%3.0f%%] %s\n", ev.Progress.Percent, ev.Progress.Label)
		case hearing.EventAlert:
			fmt.Fprintf(w, "error: %s\n", ev.Message)
		case hearing.EventDone:
			fmt.Fprintln(w, ev.Message)
		}
	}
}

func writeTranscript(session *hearing.Session, f transcribeFlags, stdout io.Writer) error {
	transcript := session.Transcript()

	if f.docx != "" {
		if err := export.Docx(f.docx, session.Catalog().TranscriptTitle, transcript); err != nil {
			return err
		}
		slog.Info("transcript written", "path", f.docx)
	}
	if f.out != "" {
		out, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.out, err)
		}
		if err := export.Text(out, transcript); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		slog.Info("transcript written", "path", f.out)
	}
	if f.out == "" && f.docx == "" {
		return export.Text(stdout, transcript)
	}
	return nil
}
