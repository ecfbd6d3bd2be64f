// Package gateway implements the dispatch router and HTTP surface of the
// speech gateway: request validation against the resolved model's capability
// set, audio normalization, engine invocation with latency measurement, the
// synthesis endpoint, and artifact serving.
package gateway

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sautilabs/sauti/internal/observe"
	"github.com/sautilabs/sauti/internal/registry"
	"github.com/sautilabs/sauti/internal/transform"
	"github.com/sautilabs/sauti/internal/vocab"
	"github.com/sautilabs/sauti/pkg/audio"
	"github.com/sautilabs/sauti/pkg/engine"
)

// DefaultInferenceTimeout bounds a single engine invocation when the
// configuration declares none.
const DefaultInferenceTimeout = 60 * time.Second

// TranscribeRequest carries the validated parameters of one transcription.
type TranscribeRequest struct {
	// Lang and Alt compose the model identifier.
	Lang string
	Alt  string

	// Audio is the raw WAV payload.
	Audio io.Reader

	// WordTiming requests per-word detail.
	WordTiming bool

	// Vocabulary is a request-scoped restricted-vocabulary payload: a JSON
	// array of words, empty when the model's persistent vocabulary applies.
	Vocabulary string

	// Scorer names the external scorer to use. Empty resolves to the model's
	// default scorer when one is declared.
	Scorer string
}

// TranscribeResponse is the transcription result. Time is the wall-clock
// engine latency in seconds, measured around the engine call only.
type TranscribeResponse struct {
	Transcript string        `json:"transcript"`
	Time       float64       `json:"time"`
	Words      []engine.Word `json:"words,omitempty"`
}

// Router resolves requests to registry entries and drives the engine-specific
// execution path. Safe for concurrent use.
type Router struct {
	reg              *registry.Registry
	metrics          *observe.Metrics
	pipeline         transform.Pipeline
	inferenceTimeout time.Duration
}

// NewRouter creates a dispatch router over the given registry. pipeline may
// be nil; a non-positive timeout falls back to [DefaultInferenceTimeout].
func NewRouter(reg *registry.Registry, metrics *observe.Metrics, pipeline transform.Pipeline, inferenceTimeout time.Duration) *Router {
	if inferenceTimeout <= 0 {
		inferenceTimeout = DefaultInferenceTimeout
	}
	for _, e := range reg.List() {
		if !e.Capabilities().Scorer {
			continue
		}
		attrs := metric.WithAttributes(attribute.String("model", string(e.ID)))
		e.SetSwapHook(func() {
			metrics.ScorerSwaps.Add(context.Background(), 1, attrs)
		})
	}
	return &Router{
		reg:              reg,
		metrics:          metrics,
		pipeline:         pipeline,
		inferenceTimeout: inferenceTimeout,
	}
}

// Languages describes every loaded model: identifier → display name plus the
// declared scorer ids.
func (r *Router) Languages() map[string]LanguageInfo {
	out := make(map[string]LanguageInfo, r.reg.Len())
	for _, e := range r.reg.List() {
		out[string(e.ID)] = LanguageInfo{
			Name:    e.DisplayName,
			Scorers: e.ScorerIDs(),
		}
	}
	return out
}

// LanguageInfo is one model's metadata in the capability listing.
type LanguageInfo struct {
	Name    string   `json:"name"`
	Scorers []string `json:"scorers"`
}

// ModelCount reports the number of loaded models. Used by the readiness
// checker.
func (r *Router) ModelCount() int { return r.reg.Len() }

// Transcribe runs the full dispatch path: resolve, capability-validate,
// normalize, invoke, assemble. Errors are classified for [httpStatus].
func (r *Router) Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResponse, error) {
	id := registry.MakeID(req.Lang, req.Alt)
	entry, ok := r.reg.Get(id)
	if !ok {
		return nil, badRequest("unsupported model %q", string(id))
	}

	opts, err := validateOptions(entry, req)
	if err != nil {
		return nil, err
	}

	clip, err := r.normalize(ctx, entry, req.Audio)
	if err != nil {
		return nil, err
	}

	attrs := metric.WithAttributes(
		attribute.String("model", string(entry.ID)),
		attribute.String("engine", string(entry.Type)),
	)

	ictx, cancel := context.WithTimeout(ctx, r.inferenceTimeout)
	defer cancel()

	start := time.Now()
	result, err := entry.Transcribe(ictx, clip, opts, req.Scorer)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, registry.ErrUnknownScorer) {
			return nil, badRequest("%v", err)
		}
		r.metrics.EngineErrors.Add(ctx, 1, attrs)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, serverError("transcription timed out after %s on model %q", r.inferenceTimeout, entry.ID)
		}
		return nil, serverError("transcription failed on model %q: %v", entry.ID, err)
	}
	r.metrics.InferenceDuration.Record(ctx, elapsed.Seconds(), attrs)

	resp := &TranscribeResponse{
		Transcript: r.pipeline.Apply(result.Transcript),
		Time:       elapsed.Seconds(),
	}
	if req.WordTiming {
		resp.Words = result.Words
	}
	return resp, nil
}

// validateOptions checks the request against the resolved model's capability
// set and builds the engine options. Each rejection names the offending
// request field.
func validateOptions(entry *registry.Entry, req TranscribeRequest) (engine.Options, error) {
	caps := entry.Capabilities()

	if req.WordTiming && !caps.WordTiming {
		return engine.Options{}, badRequest("model %q does not support word_times", entry.ID)
	}
	if req.Scorer != "" && !caps.Scorer {
		return engine.Options{}, badRequest("model %q does not support scorer selection", entry.ID)
	}

	opts := engine.Options{WordTiming: req.WordTiming}

	if req.Vocabulary != "" {
		if !caps.Vocabulary {
			return engine.Options{}, badRequest("model %q does not support vocabulary restriction", entry.ID)
		}
		v, err := vocab.Parse(req.Vocabulary)
		if err != nil {
			return engine.Options{}, badRequest("invalid vocabulary payload: %v", err)
		}
		opts.VocabularyJSON = v.JSON
	}

	return opts, nil
}

// normalize decodes the WAV payload and resamples it to the model's rate when
// the engine cannot re-bind. Decode failures are the caller's fault;
// resampling failures are not.
func (r *Router) normalize(ctx context.Context, entry *registry.Entry, payload io.Reader) (*audio.Clip, error) {
	start := time.Now()

	clip, err := audio.DecodeWAV(payload)
	if err != nil {
		// httpStatus distinguishes broken input from unsupported format.
		return nil, err
	}

	if !entry.Capabilities().RateRebind && clip.SampleRate != entry.SampleRate {
		resampled, err := audio.Resample(clip, entry.SampleRate)
		if err != nil {
			return nil, serverError("resample %d Hz to %d Hz for model %q: %v",
				clip.SampleRate, entry.SampleRate, entry.ID, err)
		}
		clip = resampled
	}

	r.metrics.NormalizeDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("model", string(entry.ID))))
	return clip, nil
}
