package llm

import "strings"

// Message represents a single message in a request.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Parts is the ordered content of the message.
	Parts []Part
}

// Part is one piece of message content: either Text, or Data tagged with
// MIMEType. Exactly one of Text and Data should be set.
type Part struct {
	// Text is plain instruction or context text.
	Text string

	// Data is raw binary content (a PDF, a video).
	Data []byte

	// MIMEType describes Data, e.g. "application/pdf" or "video/mp4".
	MIMEType string

	// Name is the original file name of Data. Informational only; providers
	// may use it when uploading.
	Name string
}

// IsBinary reports whether p carries bytes rather than text.
func (p Part) IsBinary() bool {
	return p.Data != nil
}

// TextPart returns a text Part.
func TextPart(s string) Part {
	return Part{Text: s}
}

// BinaryPart returns a Part carrying data with the given media type.
func BinaryPart(data []byte, mimeType, name string) Part {
	return Part{Data: data, MIMEType: mimeType, Name: name}
}

// UserMessage builds a "user" message from parts.
func UserMessage(parts ...Part) Message {
	return Message{Role: "user", Parts: parts}
}

// Text concatenates the text parts of m, separated by blank lines.
// Binary parts are skipped.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if !p.IsBinary() && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// HasBinary reports whether any part of m carries bytes.
func (m Message) HasBinary() bool {
	for _, p := range m.Parts {
		if p.IsBinary() {
			return true
		}
	}
	return false
}

// ModelCapabilities describes what a model accepts.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsDocuments indicates the model can read PDF parts.
	SupportsDocuments bool

	// SupportsVideo indicates the model can read video parts.
	SupportsVideo bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
