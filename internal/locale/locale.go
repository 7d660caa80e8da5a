// Package locale names the languages hearscribe can speak to its users and
// to the model.
package locale

// Language is a BCP 47 primary language subtag.
type Language string

const (
	Italian Language = "it"
	English Language = "en"
)

// Default is used when no language is configured. Hearings are in Italian.
const Default = Italian

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	return l == Italian || l == English
}

// OrDefault returns l, or [Default] when l is empty or unsupported.
func (l Language) OrDefault() Language {
	if l.IsValid() {
		return l
	}
	return Default
}
