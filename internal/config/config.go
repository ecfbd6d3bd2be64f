// Package config provides the configuration schema and loader for the sauti
// speech gateway.
//
// The configuration file is JSON by external contract: deployments share it
// with the tooling that provisions model directories. A missing or malformed
// file is not fatal — the gateway starts with zero loaded models and serves
// an empty capability list (fail-open startup, unlike the usual fail-fast
// policy). Per-model validation happens later, in the registry builder, so
// that one bad model spec never blocks the others.
package config

import "github.com/sautilabs/sauti/pkg/engine"

// LogLevel controls log verbosity for the gateway.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, loaded from a JSON file via
// [Load] or [LoadFromReader].
type Config struct {
	// Languages maps language codes to display names (e.g. "eng" → "English").
	// A model whose language code is absent here gets the "Unknown" display
	// name; that is a warning, not an error.
	Languages map[string]string `json:"languages"`

	// Models is the declarative list of model specifications to load.
	Models []ModelSpec `json:"models"`

	// Server holds network and request-handling settings.
	Server ServerConfig `json:"server"`

	// TTS configures the synthesis backend. When empty, the synthesis
	// endpoint reports the capability as unavailable.
	TTS TTSConfig `json:"tts"`
}

// ModelSpec declares one model to load into the registry.
type ModelSpec struct {
	// Lang is the language code (e.g. "eng", "swh"). Required.
	Lang string `json:"lang"`

	// ModelType selects the backend kind. Required; must be one of the
	// closed engine.Type set.
	ModelType engine.Type `json:"model_type"`

	// Alt disambiguates multiple models for the same language. The model
	// identifier becomes "lang-alt".
	Alt string `json:"alt"`

	// ModelPath is the model resource path, relative to the models root.
	// Required.
	ModelPath string `json:"model_path"`

	// Vocabulary is a restricted-vocabulary file name, relative to the
	// vocabularies root. Optional.
	Vocabulary string `json:"vocabulary"`

	// Framerate is the model's sample rate in Hz. Defaults to 16000.
	Framerate int `json:"framerate"`

	// Scorers maps scorer ids to scorer resource paths, relative to the
	// models root. The id "default" is used when a request names no scorer.
	// Only meaningful for backends with scorer support.
	Scorers map[string]string `json:"scorers"`

	// Load gates loading of this entry. Defaults to true when absent.
	Load *bool `json:"load"`
}

// Enabled reports whether this model should be loaded.
func (m ModelSpec) Enabled() bool {
	return m.Load == nil || *m.Load
}

// ServerConfig holds network and request-handling settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the gateway listens on (e.g. ":8000").
	ListenAddr string `json:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `json:"log_level"`

	// InferenceTimeoutSec bounds a single transcription's engine time in
	// seconds. Defaults to 60.
	InferenceTimeoutSec int `json:"inference_timeout_sec"`
}

// TTSConfig holds settings for the text-to-speech path.
type TTSConfig struct {
	// BaseURL is the Coqui TTS server endpoint (e.g. "http://localhost:5002").
	BaseURL string `json:"base_url"`

	// TimeoutSec is the per-request HTTP timeout in seconds. Defaults to 30.
	TimeoutSec int `json:"timeout_sec"`

	// Voices maps language codes to speaker ids on the TTS server. Optional;
	// a language without an entry uses the server's default speaker.
	Voices map[string]string `json:"voices"`
}
