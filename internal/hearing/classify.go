package hearing

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind is the role a submitted file plays in a session.
type Kind string

const (
	KindIgnored  Kind = ""
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
)

const pdfType = "application/pdf"

var videoExt = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".3gp":  "video/3gpp",
}

// Classify decides whether a file is the minutes document, a video or
// neither, and returns the media type to use for it. The file extension is
// consulted only when mediaType is empty or application/octet-stream.
func Classify(name, mediaType string) (Kind, string) {
	mt := ""
	if mediaType != "" {
		if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
			mt = strings.ToLower(parsed)
		}
	}

	switch {
	case mt == pdfType:
		return KindDocument, pdfType
	case strings.HasPrefix(mt, "video/"):
		return KindVideo, mt
	case mt != "" && mt != "application/octet-stream":
		return KindIgnored, mt
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" {
		return KindDocument, pdfType
	}
	if vt, ok := videoExt[ext]; ok {
		return KindVideo, vt
	}
	return KindIgnored, mt
}
