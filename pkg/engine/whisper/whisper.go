// Package whisper adapts whisper.cpp to the engine contract through its CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// This backend is a plain batch recognizer: no word-level timing surface, no
// restricted vocabulary, no scorer. The model demands 16 kHz mono input.
// Each transcription runs in a fresh whisper context, so concurrent
// transcriptions on the shared model are safe.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/sautilabs/sauti/pkg/audio"
	"github.com/sautilabs/sauti/pkg/engine"
)

// Compile-time assertion that Engine satisfies engine.Engine.
var _ engine.Engine = (*Engine)(nil)

// whisperSampleRate is the only rate whisper.cpp accepts.
const whisperSampleRate = 16000

// Engine wraps one loaded whisper.cpp model.
type Engine struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the decoding language hint (ISO 639-1, e.g. "en", "sw").
// Defaults to "auto".
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		if lang != "" {
			e.language = lang
		}
	}
}

// New loads the whisper.cpp model file at modelPath.
func New(modelPath string, opts ...Option) (*Engine, error) {
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	e := &Engine{model: model, language: "auto"}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Type returns engine.TypeWhisper.
func (e *Engine) Type() engine.Type { return engine.TypeWhisper }

// Capabilities returns the whisper capability set: batch transcription only.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{}
}

// SampleRate returns 16000, the only rate whisper.cpp accepts.
func (e *Engine) SampleRate() int { return whisperSampleRate }

// Close releases the native model.
func (e *Engine) Close() error {
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}

// Transcribe runs batch inference in a fresh whisper context and joins the
// emitted segment texts with single spaces.
func (e *Engine) Transcribe(ctx context.Context, clip *audio.Clip, opts engine.Options) (*engine.Result, error) {
	if e.model == nil {
		return nil, errors.New("whisper: engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: transcription aborted: %w", err)
	}
	if clip.SampleRate != whisperSampleRate {
		return nil, fmt.Errorf("whisper: clip at %d Hz, model demands %d Hz", clip.SampleRate, whisperSampleRate)
	}
	if opts.WordTiming {
		return nil, fmt.Errorf("whisper: word timing: %w", engine.ErrNotSupported)
	}
	if opts.VocabularyJSON != "" {
		return nil, fmt.Errorf("whisper: restricted vocabulary: %w", engine.ErrNotSupported)
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", e.language, "error", err)
	}

	samples := audio.PCMToFloat32(clip.PCM)
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return &engine.Result{Transcript: strings.Join(parts, " ")}, nil
}
