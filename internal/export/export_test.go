package export

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = "=== BEGIN day1.mp4 ===\n" +
	"Mario Rossi – Judge – The hearing is open.\n" +
	"Unidentified Person 1 – Unknown – Good morning.\n" +
	"(inaudible)\n" +
	"=== END day1.mp4 ===\n"

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want line
	}{
		{"", line{kind: lineBlank}},
		{"   ", line{kind: lineBlank}},
		{"=== BEGIN a.mp4 ===", line{kind: lineMarker, heading: "BEGIN a.mp4"}},
		{"=== FINE a.mp4 ===", line{kind: lineMarker, heading: "FINE a.mp4"}},
		{"Mario Rossi – Judge – Hello – again", line{kind: lineSpeaker, speaker: "Mario Rossi – Judge – ", text: "Hello – again"}},
		{"just text", line{kind: linePlain, text: "just text"}},
		{"A – B", line{kind: linePlain, text: "A – B"}},
	}
	for _, tt := range tests {
		if got := classify(tt.in); got != tt.want {
			t.Errorf("classify(%q)=%+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestDocx_WritesZipWithText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.docx")
	if err := Docx(path, "Hearing transcript", sample); err != nil {
		t.Fatalf("Docx: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("output is not a zip archive")
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	var body string
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		body = string(b)
	}
	for _, want := range []string{"Hearing transcript", "BEGIN day1.mp4", "The hearing is open.", "(inaudible)"} {
		if !strings.Contains(body, want) {
			t.Errorf("document.xml missing %q", want)
		}
	}
}

func TestWriteDocx(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocx(&buf, "", sample); err != nil {
		t.Fatalf("WriteDocx: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("output is not a zip archive")
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	if err := Text(&buf, "line"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "line\n" {
		t.Errorf("Text=%q", buf.String())
	}
	buf.Reset()
	_ = Text(&buf, sample)
	if buf.String() != sample {
		t.Errorf("Text added an extra newline")
	}
}

func TestText_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Text(&buf, ""); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("Text(\"\")=%q, want empty", buf.String())
	}
}
