// Package prompt renders the four model instructions used by hearscribe:
// participant extraction, video transcription, anonymization and correction.
//
// Built-in templates exist for every [locale.Language]. Any of them can be
// replaced through [Overrides], typically loaded from the config file, and
// are parsed with text/template using the field names of the data structs
// below.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/MrWong99/hearscribe/internal/locale"
)

// TranscriptionData is the template data for the transcription prompt.
type TranscriptionData struct {
	Participants string
	Notes        string
}

// AnonymizeData is the template data for the anonymization prompt.
type AnonymizeData struct {
	Transcript  string
	Placeholder string
}

// CorrectData is the template data for the correction prompt.
type CorrectData struct {
	Transcript string
	Correction string
}

// Overrides replaces built-in templates. Empty fields keep the built-in text.
type Overrides struct {
	Participants  string
	Transcription string
	Anonymize     string
	Correct       string
}

// Set is a parsed, ready-to-render group of templates for one language. It
// is immutable and safe for concurrent use.
type Set struct {
	lang          locale.Language
	noneMarker    string
	placeholder   string
	participants  *template.Template
	transcription *template.Template
	anonymize     *template.Template
	correct       *template.Template
}

// New parses the templates for lang, applying ov on top of the built-ins.
// All parse failures are reported together.
func New(lang locale.Language, ov Overrides) (*Set, error) {
	lang = lang.OrDefault()
	b := builtins[lang]

	s := &Set{lang: lang, noneMarker: b.noneMarker, placeholder: b.placeholder}
	var errs []error
	parse := func(name, builtin, override string) *template.Template {
		text := builtin
		if strings.TrimSpace(override) != "" {
			text = override
		}
		t, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			errs = append(errs, fmt.Errorf("prompt: parse %s: %w", name, err))
		}
		return t
	}
	s.participants = parse("participants", b.participants, ov.Participants)
	s.transcription = parse("transcription", b.transcription, ov.Transcription)
	s.anonymize = parse("anonymize", b.anonymize, ov.Anonymize)
	s.correct = parse("correct", b.correct, ov.Correct)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Language returns the language the set was built for.
func (s *Set) Language() locale.Language { return s.lang }

// Participants renders the participant-extraction instruction.
func (s *Set) Participants() (string, error) {
	return render(s.participants, nil)
}

// Transcription renders the per-video transcription instruction. Empty
// notes are replaced by an explicit "none" marker.
func (s *Set) Transcription(participants, notes string) (string, error) {
	if strings.TrimSpace(notes) == "" {
		notes = s.noneMarker
	}
	return render(s.transcription, TranscriptionData{Participants: participants, Notes: notes})
}

// Anonymize renders the anonymization instruction embedding transcript.
func (s *Set) Anonymize(transcript string) (string, error) {
	return render(s.anonymize, AnonymizeData{Transcript: transcript, Placeholder: s.placeholder})
}

// Correct renders the correction instruction embedding transcript and the
// user-supplied correction.
func (s *Set) Correct(transcript, correction string) (string, error) {
	return render(s.correct, CorrectData{Transcript: transcript, Correction: correction})
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", t.Name(), err)
	}
	return sb.String(), nil
}
