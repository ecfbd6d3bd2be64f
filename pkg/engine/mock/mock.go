// Package mock provides a configurable in-memory engine for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/sautilabs/sauti/pkg/audio"
	"github.com/sautilabs/sauti/pkg/engine"
)

// Compile-time assertions.
var (
	_ engine.Engine        = (*Engine)(nil)
	_ engine.ScorerSwapper = (*Engine)(nil)
)

// Engine is a fake engine.Engine whose behaviour is set by its fields.
// The zero value transcribes everything to an empty result.
type Engine struct {
	EngineType engine.Type
	Caps       engine.Capabilities
	Rate       int

	// Result and Err are returned from Transcribe.
	Result *engine.Result
	Err    error

	// Delay makes Transcribe block before returning, honouring context
	// cancellation.
	Delay time.Duration

	// ScorerErr is returned from SwapScorer and ClearScorer.
	ScorerErr error

	mu sync.Mutex
	// Calls records every Transcribe invocation's options.
	Calls []engine.Options
	// SwappedTo records every SwapScorer path; "" entries mark ClearScorer.
	SwappedTo []string
	Closed    bool
}

// Type returns the configured engine type.
func (e *Engine) Type() engine.Type { return e.EngineType }

// Capabilities returns the configured capability set.
func (e *Engine) Capabilities() engine.Capabilities { return e.Caps }

// SampleRate returns the configured rate, defaulting to 16000.
func (e *Engine) SampleRate() int {
	if e.Rate == 0 {
		return 16000
	}
	return e.Rate
}

// Transcribe records the call and returns the configured result.
func (e *Engine) Transcribe(ctx context.Context, _ *audio.Clip, opts engine.Options) (*engine.Result, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, opts)
	e.mu.Unlock()
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Result != nil {
		return e.Result, nil
	}
	return &engine.Result{}, nil
}

// SwapScorer records the path.
func (e *Engine) SwapScorer(path string) error {
	if e.ScorerErr != nil {
		return e.ScorerErr
	}
	e.mu.Lock()
	e.SwappedTo = append(e.SwappedTo, path)
	e.mu.Unlock()
	return nil
}

// ClearScorer records an empty swap.
func (e *Engine) ClearScorer() error {
	if e.ScorerErr != nil {
		return e.ScorerErr
	}
	e.mu.Lock()
	e.SwappedTo = append(e.SwappedTo, "")
	e.mu.Unlock()
	return nil
}

// CallCount returns how many times Transcribe ran.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.Closed = true
	e.mu.Unlock()
	return nil
}
