// Package vosk adapts the Vosk (Kaldi-lattice) recognizer to the engine
// contract. The native model is loaded once; every transcription builds a
// short-lived recognizer bound to the observed sample rate of the input, so
// the adapter re-binds rates per request and plain transcriptions can run
// concurrently on the shared model.
//
// The Vosk shared library (libvosk) must be available at link time.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	voskapi "github.com/alphacep/vosk-api/go"

	"github.com/sautilabs/sauti/pkg/audio"
	"github.com/sautilabs/sauti/pkg/engine"
)

// Compile-time assertion that Engine satisfies engine.Engine.
var _ engine.Engine = (*Engine)(nil)

// chunkBytes is how much PCM is fed to the recognizer per AcceptWaveform
// call: 4000 frames of 16-bit samples.
const chunkBytes = 8000

// defaultSampleRate is the preferred rate when the input rate is unusable.
const defaultSampleRate = 16000

// Engine wraps one loaded Vosk model. Safe for concurrent Transcribe calls:
// the model handle only serves as a recognizer factory and each call owns its
// recognizer exclusively.
type Engine struct {
	model      *voskapi.VoskModel
	rate       int
	vocabulary string // persistent grammar JSON, empty when unrestricted
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithSampleRate sets the preferred sample rate in Hz. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.rate = rate
		}
	}
}

// WithVocabulary installs a persistent restricted-vocabulary grammar. The
// payload must be the canonical JSON word-array form produced by the vocab
// package.
func WithVocabulary(grammarJSON string) Option {
	return func(e *Engine) { e.vocabulary = grammarJSON }
}

// New loads the Vosk model directory at modelPath.
func New(modelPath string, opts ...Option) (*Engine, error) {
	model, err := voskapi.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("vosk: load model %q: %w", modelPath, err)
	}
	e := &Engine{model: model, rate: defaultSampleRate}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Type returns engine.TypeVosk.
func (e *Engine) Type() engine.Type { return engine.TypeVosk }

// Capabilities returns the Vosk capability set: word timing, restricted
// vocabulary, and sample-rate re-binding, but no external scorer.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		WordTiming: true,
		Vocabulary: true,
		RateRebind: true,
	}
}

// SampleRate returns the preferred rate; input at other rates is accepted.
func (e *Engine) SampleRate() int { return e.rate }

// Close frees the native model.
func (e *Engine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

// Transcribe feeds the clip through a recognizer bound to the clip's sample
// rate. A per-request vocabulary override builds the recognizer with that
// grammar instead of the persistent one; the override recognizer is owned by
// this call and discarded afterwards.
func (e *Engine) Transcribe(ctx context.Context, clip *audio.Clip, opts engine.Options) (*engine.Result, error) {
	if e.model == nil {
		return nil, errors.New("vosk: engine is closed")
	}

	rate := clip.SampleRate
	if rate <= 0 {
		rate = e.rate
	}

	grammar := e.vocabulary
	if opts.VocabularyJSON != "" {
		grammar = opts.VocabularyJSON
	}

	rec, err := e.newRecognizer(float64(rate), grammar)
	if err != nil {
		return nil, err
	}
	defer rec.Free()
	rec.SetWords(1)

	var words []engine.Word
	pcm := clip.PCM
	for off := 0; off < len(pcm); off += chunkBytes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("vosk: transcription aborted: %w", err)
		}
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if rec.AcceptWaveform(pcm[off:end]) != 0 {
			segment, err := parseResult(rec.Result())
			if err != nil {
				return nil, err
			}
			words = append(words, segment...)
		}
	}

	final, err := parseResult(rec.FinalResult())
	if err != nil {
		return nil, err
	}
	words = append(words, final...)

	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = w.Word
	}

	return &engine.Result{
		Words:      words,
		Transcript: strings.Join(tokens, " "),
	}, nil
}

// newRecognizer builds a recognizer at the given rate, grammar-restricted
// when grammar is non-empty.
func (e *Engine) newRecognizer(rate float64, grammar string) (*voskapi.VoskRecognizer, error) {
	if grammar != "" {
		rec, err := voskapi.NewRecognizerGrm(e.model, rate, grammar)
		if err != nil {
			return nil, fmt.Errorf("vosk: create grammar recognizer at %.0f Hz: %w", rate, err)
		}
		return rec, nil
	}
	rec, err := voskapi.NewRecognizer(e.model, rate)
	if err != nil {
		return nil, fmt.Errorf("vosk: create recognizer at %.0f Hz: %w", rate, err)
	}
	return rec, nil
}

// voskResult mirrors the recognizer's JSON output with word detail enabled.
type voskResult struct {
	Result []voskWord `json:"result"`
	Text   string     `json:"text"`
}

type voskWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

// parseResult decodes one recognizer result payload into engine words.
func parseResult(payload string) ([]engine.Word, error) {
	var res voskResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("vosk: decode recognizer result: %w", err)
	}
	words := make([]engine.Word, len(res.Result))
	for i, w := range res.Result {
		words[i] = engine.Word{Word: w.Word, Start: w.Start, End: w.End, Conf: w.Conf}
	}
	return words, nil
}
