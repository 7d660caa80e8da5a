// Package export writes a transcript as a Word document or as plain text.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	fontName  = "Times New Roman"
	fontSize  = 12
	titleSize = 16
	headSize  = 13
)

// speakerSep separates name, role and utterance in a transcript line.
const speakerSep = " – "

var reMarker = regexp.MustCompile(`^===\s*(.+?)\s*===$`)

// lineKind classifies one transcript line for styling.
type lineKind int

const (
	lineBlank lineKind = iota
	lineMarker
	lineSpeaker
	linePlain
)

type line struct {
	kind    lineKind
	heading string // marker text without the === fences
	speaker string // "Name – Role – " prefix, including the trailing separator
	text    string
}

func classify(raw string) line {
	s := strings.TrimSpace(raw)
	if s == "" {
		return line{kind: lineBlank}
	}
	if m := reMarker.FindStringSubmatch(s); m != nil {
		return line{kind: lineMarker, heading: m[1]}
	}
	if parts := strings.SplitN(s, speakerSep, 3); len(parts) == 3 && parts[0] != "" && parts[1] != "" {
		return line{kind: lineSpeaker, speaker: parts[0] + speakerSep + parts[1] + speakerSep, text: parts[2]}
	}
	return line{kind: linePlain, text: s}
}

// Docx writes transcript to path as a .docx file headed by title. Segment
// markers become bold headings and the speaker prefix of each utterance is
// set in bold.
func Docx(path, title, transcript string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("export: new document: %w", err)
	}

	if title != "" {
		addRun(doc.AddParagraph(""), title, true, titleSize)
	}

	for _, raw := range strings.Split(transcript, "\n") {
		l := classify(raw)
		switch l.kind {
		case lineBlank:
			continue
		case lineMarker:
			doc.AddParagraph("")
			addRun(doc.AddParagraph(""), l.heading, true, headSize)
		case lineSpeaker:
			p := doc.AddParagraph("")
			addRun(p, l.speaker, true, fontSize)
			addRun(p, l.text, false, fontSize)
		default:
			addRun(doc.AddParagraph(""), l.text, false, fontSize)
		}
	}

	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("export: save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteDocx renders the document into a temporary file and copies it to w.
func WriteDocx(w io.Writer, title, transcript string) error {
	dir, err := os.MkdirTemp("", "hearscribe-export-*")
	if err != nil {
		return fmt.Errorf("export: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "transcript.docx")
	if err := Docx(path, title, transcript); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("export: reopen: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("export: copy: %w", err)
	}
	return nil
}

// Text writes transcript to w, ending it with a newline. An empty
// transcript writes nothing.
func Text(w io.Writer, transcript string) error {
	if transcript == "" {
		return nil
	}
	if !strings.HasSuffix(transcript, "\n") {
		transcript += "\n"
	}
	if _, err := io.WriteString(w, transcript); err != nil {
		return fmt.Errorf("export: write text: %w", err)
	}
	return nil
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
