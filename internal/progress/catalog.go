package progress

import (
	"fmt"

	"github.com/MrWong99/hearscribe/internal/locale"
)

// Catalog holds the user-facing strings for one language.
type Catalog struct {
	Language locale.Language

	analyzing    string
	participants string // %d videos
	video        string // %d index, %d total, %s name
	complete     string
	failed       string
	anonymizing  string
	anonymized   string
	correcting   string
	corrected    string
	beginMarker  string // %s name
	endMarker    string // %s name

	// TranscriptTitle heads exported documents.
	TranscriptTitle string

	// Validation and alert messages.
	MissingDocument   string
	MissingVideo      string
	MissingTranscript string
	MissingCorrection string
	Busy              string
}

var catalogs = map[locale.Language]Catalog{
	locale.Italian: {
		Language:          locale.Italian,
		analyzing:         "Analisi del verbale in corso...",
		participants:      "Partecipanti identificati. Trascrizione di %d video...",
		video:             "Trascrizione video %d di %d: %s",
		complete:          "Processo completato",
		failed:            "Si è verificato un errore durante l'elaborazione",
		anonymizing:       "Anonimizzazione in corso...",
		anonymized:        "Anonimizzazione completata",
		correcting:        "Applicazione della correzione...",
		corrected:         "Correzione applicata",
		beginMarker:       "=== INIZIO %s ===",
		endMarker:         "=== FINE %s ===",
		TranscriptTitle:   "Trascrizione dell'udienza",
		MissingDocument:   "Carica il verbale (PDF) prima di avviare la trascrizione",
		MissingVideo:      "Carica almeno un video prima di avviare la trascrizione",
		MissingTranscript: "Nessuna trascrizione da elaborare",
		MissingCorrection: "Inserisci il testo della correzione",
		Busy:              "Un'elaborazione è già in corso",
	},
	locale.English: {
		Language:          locale.English,
		analyzing:         "Analyzing minutes document...",
		participants:      "Participants identified. Transcribing %d video(s)...",
		video:             "Transcribing video %d of %d: %s",
		complete:          "Process complete",
		failed:            "An error occurred during processing",
		anonymizing:       "Anonymizing...",
		anonymized:        "Anonymization complete",
		correcting:        "Applying correction...",
		corrected:         "Correction applied",
		beginMarker:       "=== BEGIN %s ===",
		endMarker:         "=== END %s ===",
		TranscriptTitle:   "Hearing transcript",
		MissingDocument:   "Upload the minutes document (PDF) before starting",
		MissingVideo:      "Upload at least one video before starting",
		MissingTranscript: "There is no transcript to process",
		MissingCorrection: "Enter the correction text",
		Busy:              "Processing is already in progress",
	},
}

// For returns the catalog for lang, falling back to [locale.Default].
func For(lang locale.Language) Catalog {
	return catalogs[lang.OrDefault()]
}

// Analyzing is reported at 0% while the minutes document is analysed.
func (c Catalog) Analyzing() Progress {
	return Progress{Percent: 0, Label: c.analyzing, Stage: StageAnalyzing}
}

// ParticipantsIdentified is reported once the roster is known.
func (c Catalog) ParticipantsIdentified(videos int) Progress {
	return Progress{Percent: ParticipantsPercent, Label: fmt.Sprintf(c.participants, videos), Stage: StageTranscribing}
}

// Video is reported before transcribing video i (zero-based) of n.
func (c Catalog) Video(i, n int, name string) Progress {
	return Progress{Percent: VideoPercent(i, n), Label: fmt.Sprintf(c.video, i+1, n, name), Stage: StageTranscribing}
}

// Complete is reported when every video has been transcribed.
func (c Catalog) Complete() Progress {
	return Progress{Percent: 100, Label: c.complete, Stage: StageDone}
}

// FailedLabel is the generic failure message.
func (c Catalog) FailedLabel() string { return c.failed }

// Anonymizing is reported when the anonymization action starts.
func (c Catalog) Anonymizing() Progress {
	return Progress{Percent: 0, Label: c.anonymizing, Stage: StageAnonymizing}
}

// Anonymized is reported when the anonymization action succeeds.
func (c Catalog) Anonymized() Progress {
	return Progress{Percent: 100, Label: c.anonymized, Stage: StageAnonymized}
}

// Correcting is reported when the correction action starts.
func (c Catalog) Correcting() Progress {
	return Progress{Percent: 0, Label: c.correcting, Stage: StageCorrecting}
}

// Corrected is reported when the correction action succeeds.
func (c Catalog) Corrected() Progress {
	return Progress{Percent: 100, Label: c.corrected, Stage: StageCorrected}
}

// BeginMarker is the line opening the transcript segment of a video.
func (c Catalog) BeginMarker(name string) string {
	return fmt.Sprintf(c.beginMarker, name)
}

// EndMarker is the line closing the transcript segment of a video.
func (c Catalog) EndMarker(name string) string {
	return fmt.Sprintf(c.endMarker, name)
}
