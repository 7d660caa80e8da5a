package hearing_test

import (
	"testing"

	"github.com/MrWong99/hearscribe/internal/hearing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, mediaType string
		wantKind        hearing.Kind
		wantType        string
	}{
		{"minutes.pdf", "application/pdf", hearing.KindDocument, "application/pdf"},
		{"MINUTES.PDF", "", hearing.KindDocument, "application/pdf"},
		{"minutes.pdf", "application/octet-stream", hearing.KindDocument, "application/pdf"},
		{"scan", "application/pdf; name=scan", hearing.KindDocument, "application/pdf"},
		{"day1.mp4", "video/mp4", hearing.KindVideo, "video/mp4"},
		{"day1.bin", "Video/WebM", hearing.KindVideo, "video/webm"},
		{"day1.mov", "", hearing.KindVideo, "video/quicktime"},
		{"day1.mkv", "application/octet-stream", hearing.KindVideo, "video/x-matroska"},
		{"minutes.pdf", "text/plain", hearing.KindIgnored, "text/plain"},
		{"notes.txt", "", hearing.KindIgnored, ""},
		{"audio.mp3", "audio/mpeg", hearing.KindIgnored, "audio/mpeg"},
	}
	for _, tt := range tests {
		kind, mt := hearing.Classify(tt.name, tt.mediaType)
		if kind != tt.wantKind || mt != tt.wantType {
			t.Errorf("Classify(%q, %q)=(%q, %q), want (%q, %q)", tt.name, tt.mediaType, kind, mt, tt.wantKind, tt.wantType)
		}
	}
}
