package config

import "github.com/MrWong99/hearscribe/internal/locale"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; the others are
// listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	LanguageChanged bool
	NewLanguage     locale.Language

	// PromptsChanged is true when any prompt override changed, or when the
	// language changed (which selects different built-in prompts).
	PromptsChanged bool

	// RestartRequired lists the config keys that changed but only take
	// effect after a restart.
	RestartRequired []string
}

// HasLiveChanges reports whether anything in d can be applied without restart.
func (d ConfigDiff) HasLiveChanges() bool {
	return d.LogLevelChanged || d.LanguageChanged || d.PromptsChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Language
	if old.Transcription.Language != new.Transcription.Language {
		d.LanguageChanged = true
		d.NewLanguage = new.Transcription.Language
		d.PromptsChanged = true
	}

	if old.Prompts != new.Prompts {
		d.PromptsChanged = true
	}

	// Restart-only settings.
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Server.MaxUploadMB != new.Server.MaxUploadMB {
		d.RestartRequired = append(d.RestartRequired, "server.max_upload_mb")
	}
	if !sameEntry(old.Providers.LLM, new.Providers.LLM) {
		d.RestartRequired = append(d.RestartRequired, "providers.llm")
	}
	if !sameEntry(old.Providers.Text, new.Providers.Text) {
		d.RestartRequired = append(d.RestartRequired, "providers.text")
	}
	if old.Transcription.TemperatureOrDefault() != new.Transcription.TemperatureOrDefault() ||
		old.Transcription.InlineLimitMB != new.Transcription.InlineLimitMB {
		d.RestartRequired = append(d.RestartRequired, "transcription")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}

	return d
}

// sameEntry compares the scalar fields of two provider entries. Options are
// not compared.
func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
