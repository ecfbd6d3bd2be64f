// Package coqui adapts a Coqui STT (DeepSpeech-family) acoustic model to the
// engine contract through the go-astideepspeech CGO bindings.
//
// This backend is the scorer-augmented batch recognizer: an external
// language-model scorer can be enabled, swapped, or detached at runtime,
// biasing decoding toward probable word sequences. Scorer changes mutate the
// shared native handle, so the model registry serializes Transcribe and
// scorer operations per entry; the adapter itself takes no locks.
//
// The model demands a fixed sample rate (16 kHz for published Coqui models);
// input at any other rate must be resampled before it reaches Transcribe.
package coqui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	astideepspeech "github.com/asticode/go-astideepspeech"

	"github.com/sautilabs/sauti/pkg/audio"
	"github.com/sautilabs/sauti/pkg/engine"
)

// Compile-time assertions.
var (
	_ engine.Engine        = (*Engine)(nil)
	_ engine.ScorerSwapper = (*Engine)(nil)
)

// Engine wraps one loaded Coqui STT model. Not safe for concurrent use; the
// registry's per-entry lock serializes all calls.
type Engine struct {
	model *astideepspeech.Model
}

// New loads the acoustic model file at modelPath (.pbmm or .tflite).
func New(modelPath string) (*Engine, error) {
	model, err := astideepspeech.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("coqui: load model %q: %w", modelPath, err)
	}
	return &Engine{model: model}, nil
}

// Type returns engine.TypeCoqui.
func (e *Engine) Type() engine.Type { return engine.TypeCoqui }

// Capabilities returns the Coqui capability set: word timing and external
// scorers, but no restricted vocabulary and no sample-rate re-binding.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		WordTiming: true,
		Scorer:     true,
	}
}

// SampleRate returns the rate the acoustic model was trained at. Input must
// arrive at exactly this rate.
func (e *Engine) SampleRate() int {
	if e.model == nil {
		return 0
	}
	return e.model.SampleRate()
}

// Close releases the native model.
func (e *Engine) Close() error {
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	if err != nil {
		return fmt.Errorf("coqui: close model: %w", err)
	}
	return nil
}

// SwapScorer loads the external scorer at path, replacing any active one.
func (e *Engine) SwapScorer(path string) error {
	if e.model == nil {
		return errors.New("coqui: engine is closed")
	}
	if err := e.model.EnableExternalScorer(path); err != nil {
		return fmt.Errorf("coqui: enable scorer %q: %w", path, err)
	}
	return nil
}

// ClearScorer detaches the active scorer.
func (e *Engine) ClearScorer() error {
	if e.model == nil {
		return errors.New("coqui: engine is closed")
	}
	if err := e.model.DisableExternalScorer(); err != nil {
		return fmt.Errorf("coqui: disable scorer: %w", err)
	}
	return nil
}

// Transcribe runs batch recognition over the clip. The clip must already be
// at the model's sample rate; the dispatch layer resamples beforehand.
func (e *Engine) Transcribe(ctx context.Context, clip *audio.Clip, opts engine.Options) (*engine.Result, error) {
	if e.model == nil {
		return nil, errors.New("coqui: engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("coqui: transcription aborted: %w", err)
	}
	if want := e.model.SampleRate(); clip.SampleRate != want {
		return nil, fmt.Errorf("coqui: clip at %d Hz, model demands %d Hz", clip.SampleRate, want)
	}
	if opts.VocabularyJSON != "" {
		return nil, fmt.Errorf("coqui: restricted vocabulary: %w", engine.ErrNotSupported)
	}

	samples := audio.PCMToInt16(clip.PCM)

	if !opts.WordTiming {
		text, err := e.model.SpeechToText(samples)
		if err != nil {
			return nil, fmt.Errorf("coqui: speech to text: %w", err)
		}
		return &engine.Result{Transcript: strings.Join(strings.Fields(text), " ")}, nil
	}

	md, err := e.model.SpeechToTextWithMetadata(samples, 1)
	if err != nil {
		return nil, fmt.Errorf("coqui: speech to text with metadata: %w", err)
	}
	defer md.Close()

	transcripts := md.Transcripts()
	if len(transcripts) == 0 {
		return &engine.Result{Words: []engine.Word{}}, nil
	}

	best := transcripts[0]
	var tokens []charToken
	for _, tok := range best.Tokens() {
		tokens = append(tokens, charToken{
			text:  tok.Text(),
			start: float64(tok.StartTime()),
		})
	}
	words := assembleWords(tokens, best.Confidence())

	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Word
	}
	return &engine.Result{
		Words:      words,
		Transcript: strings.Join(texts, " "),
	}, nil
}

// charToken is one character-level decoding step: the model emits characters,
// not words, so word boundaries are reconstructed at space tokens.
type charToken struct {
	text  string
	start float64
}

// assembleWords groups character tokens into words. Each word's Start is the
// start time of its first character and End the start time of its last; the
// decoder reports no per-word confidence, so the transcript-level confidence
// is attached to every word.
func assembleWords(tokens []charToken, confidence float64) []engine.Word {
	var (
		words   []engine.Word
		current strings.Builder
		start   float64
		last    float64
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		words = append(words, engine.Word{
			Word:  current.String(),
			Start: start,
			End:   last,
			Conf:  confidence,
		})
		current.Reset()
	}
	for _, tok := range tokens {
		if tok.text == " " {
			flush()
			continue
		}
		if current.Len() == 0 {
			start = tok.start
		}
		last = tok.start
		current.WriteString(tok.text)
	}
	flush()
	return words
}
