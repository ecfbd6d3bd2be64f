// Package engine defines the uniform adapter contract over heterogeneous
// speech-recognition backends.
//
// Each backend kind has a different capability set: some produce word-level
// timing, some accept a restricted vocabulary, some carry a swappable external
// language-model scorer, some can re-bind to the sample rate observed on the
// incoming audio. Callers query capabilities once via [Engine.Capabilities]
// instead of branching on the backend kind at every call site.
//
// Implementations own exactly one loaded native model. An Engine value is
// never shared between registry entries.
package engine

import (
	"context"
	"errors"

	"github.com/sautilabs/sauti/pkg/audio"
)

// Type identifies a backend kind. The set is closed; adding a kind means
// adding an adapter package and a registry constructor.
type Type string

const (
	// TypeVosk is the Kaldi-lattice streaming recognizer.
	TypeVosk Type = "vosk"

	// TypeCoqui is the DeepSpeech-family batch recognizer with external
	// scorer support.
	TypeCoqui Type = "coqui"

	// TypeWhisper is the whisper.cpp batch recognizer.
	TypeWhisper Type = "whisper"
)

// IsValid reports whether t is a recognised backend kind.
func (t Type) IsValid() bool {
	switch t {
	case TypeVosk, TypeCoqui, TypeWhisper:
		return true
	}
	return false
}

// ErrNotSupported is returned when an operation is invoked on an engine whose
// capability set does not include it.
var ErrNotSupported = errors.New("engine: operation not supported by this backend")

// Capabilities declares what a backend can do. The dispatch layer validates
// request options against this before invoking the engine.
type Capabilities struct {
	// WordTiming: the engine reports per-word start/end times and confidence.
	WordTiming bool

	// Vocabulary: the engine accepts a restricted-vocabulary grammar, both
	// persistent (configured per model) and per-request.
	Vocabulary bool

	// Scorer: the engine supports swappable external language-model scorers.
	Scorer bool

	// RateRebind: the engine can transcribe at whatever sample rate the
	// normalized input arrives in. Engines without it demand [Engine.SampleRate].
	RateRebind bool
}

// Word is one recognized token with timing detail. Start and End are seconds
// from the beginning of the clip; Conf is in [0, 1].
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

// Result is the outcome of one transcription. Transcript is the emitted
// tokens joined by single spaces, in order. Words is nil for backends without
// word timing or when timing was not requested.
type Result struct {
	Words      []Word
	Transcript string
}

// Options carries per-request parameters. Zero value means plain
// transcription with the model's persistent configuration.
type Options struct {
	// WordTiming requests per-word detail in the result.
	WordTiming bool

	// VocabularyJSON, when non-empty, is a canonical restricted-vocabulary
	// payload that replaces the model's persistent vocabulary for this request
	// only. See the vocab package for the canonical form.
	VocabularyJSON string
}

// Engine is the uniform adapter over one loaded native backend instance.
//
// Transcribe must be safe to call concurrently only if the implementation
// documents it; the model registry serializes calls per entry otherwise.
type Engine interface {
	// Type returns the backend kind. Fixed for the engine's lifetime.
	Type() Type

	// Capabilities returns the backend's declared capability set.
	Capabilities() Capabilities

	// SampleRate returns the rate the engine demands, in Hz. For engines with
	// RateRebind it is only the preferred rate; input at other rates is accepted.
	SampleRate() int

	// Transcribe runs recognition over a normalized clip. Backend-internal
	// failures are server errors; the caller does not retry them.
	Transcribe(ctx context.Context, clip *audio.Clip, opts Options) (*Result, error)

	// Close releases the native model. The engine is unusable afterwards.
	Close() error
}

// ScorerSwapper is implemented by engines whose capability set includes
// Scorer. Swapping mutates the owned native handle; callers must hold the
// registry's per-entry lock across SwapScorer and any concurrent Transcribe.
type ScorerSwapper interface {
	// SwapScorer loads the external scorer at path, replacing any active one.
	SwapScorer(path string) error

	// ClearScorer detaches the active scorer, returning the engine to
	// scorer-less decoding.
	ClearScorer() error
}
