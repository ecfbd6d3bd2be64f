package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Defaults applied by [LoadFromReader] when the corresponding field is unset.
const (
	DefaultListenAddr          = ":8000"
	DefaultInferenceTimeoutSec = 60
	DefaultTTSTimeoutSec       = 30
)

// Default returns a configuration with no models and all defaults applied.
// This is the fail-open fallback when the config file is missing or broken:
// the gateway still starts, serving an empty capability list.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:          DefaultListenAddr,
			InferenceTimeoutSec: DefaultInferenceTimeoutSec,
		},
		TTS: TTSConfig{
			TimeoutSec: DefaultTTSTimeoutSec,
		},
	}
}

// Load reads the JSON configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a JSON config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
//
// Validation here covers only gateway-level settings. Per-model specs are
// deliberately not validated: the registry builder checks them one by one so
// a bad entry skips that entry instead of failing the whole load.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode json: %w", err)
	}

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.InferenceTimeoutSec <= 0 {
		cfg.Server.InferenceTimeoutSec = DefaultInferenceTimeoutSec
	}
	if cfg.TTS.TimeoutSec <= 0 {
		cfg.TTS.TimeoutSec = DefaultTTSTimeoutSec
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks gateway-level settings. It returns a joined error listing
// all failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	return errors.Join(errs...)
}
