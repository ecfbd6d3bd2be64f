// Package registry implements the model registry: the startup-built catalog
// mapping model identifiers to loaded engine adapters and their metadata.
//
// The registry is built once from configuration before the gateway accepts
// requests and is read-mostly afterwards. The only steady-state mutation is
// the per-entry scorer swap, serialized by a lock owned by that entry so that
// unrelated models never contend.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sautilabs/sauti/internal/vocab"
	"github.com/sautilabs/sauti/pkg/audio"
	"github.com/sautilabs/sauti/pkg/engine"
)

// Separator joins the language code and the alternate-model tag in a model
// identifier.
const Separator = "-"

// DefaultSampleRate is assumed for model specs that declare no framerate.
const DefaultSampleRate = 16000

// UnknownLanguage is the display name synthesized for models whose language
// code is absent from the configured language-name table.
const UnknownLanguage = "Unknown"

// DefaultScorerID is the scorer id used when a request names none and the
// backend wants one.
const DefaultScorerID = "default"

// ErrUnknownScorer is returned when a request names a scorer id that is not
// declared for the resolved model. This is the caller's fault.
var ErrUnknownScorer = errors.New("registry: unknown scorer id")

// ID is a composite model identifier: the language code, optionally followed
// by the separator and an alternate-model tag.
type ID string

// MakeID composes a model identifier from a language code and an optional
// alternate-model tag.
func MakeID(lang, alt string) ID {
	if alt == "" {
		return ID(lang)
	}
	return ID(lang + Separator + alt)
}

// ParseID splits an identifier back into language code and alternate tag.
// Identifiers with more than one separator are malformed.
func ParseID(id ID) (lang, alt string, err error) {
	fields := strings.Split(string(id), Separator)
	switch len(fields) {
	case 1:
		return fields[0], "", nil
	case 2:
		return fields[0], fields[1], nil
	default:
		return "", "", fmt.Errorf("registry: malformed model identifier %q", id)
	}
}

// Entry is one loaded model: its metadata plus exclusive ownership of the
// native engine handle. Entries are created by the builder and live until
// process shutdown.
type Entry struct {
	ID          ID
	Type        engine.Type
	DisplayName string
	SampleRate  int

	// Vocabulary is the persistent restricted vocabulary, nil when the model
	// is unrestricted.
	Vocabulary *vocab.Vocabulary

	// scorers maps scorer ids to resource paths. Immutable after build.
	scorers map[string]string

	// mu serializes scorer transitions and, for backends whose handle is not
	// safe under concurrent invocation while a swap may interleave, the
	// transcribe calls themselves.
	mu           sync.Mutex
	activeScorer string // "" means no scorer active
	swapHook     func()

	eng engine.Engine
}

// Capabilities returns the owned engine's declared capability set.
func (e *Entry) Capabilities() engine.Capabilities { return e.eng.Capabilities() }

// Engine exposes the owned engine for capability-free operations. The caller
// must not retain it across requests.
func (e *Entry) Engine() engine.Engine { return e.eng }

// ScorerIDs returns the declared scorer ids, sorted.
func (e *Entry) ScorerIDs() []string {
	ids := make([]string, 0, len(e.scorers))
	for id := range e.scorers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetSwapHook registers fn to run after every successful scorer transition.
// Instrumentation only; fn must not call back into the entry.
func (e *Entry) SetSwapHook(fn func()) {
	e.mu.Lock()
	e.swapHook = fn
	e.mu.Unlock()
}

// ActiveScorer returns the currently active scorer id, or "" when none is.
func (e *Entry) ActiveScorer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeScorer
}

// Transcribe runs the engine over a normalized clip, applying the scorer-swap
// sub-protocol first when the backend supports scorers.
//
// For scorer-capable backends the entry lock is held across both the swap and
// the engine invocation: the native handle is not guaranteed safe for a
// transcribe concurrent with a swap. Backends without scorer support are
// invoked without the lock — their adapters document concurrent safety.
func (e *Entry) Transcribe(ctx context.Context, clip *audio.Clip, opts engine.Options, scorerID string) (*engine.Result, error) {
	if !e.eng.Capabilities().Scorer {
		return e.eng.Transcribe(ctx, clip, opts)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.applyScorerLocked(scorerID); err != nil {
		return nil, err
	}
	return e.eng.Transcribe(ctx, clip, opts)
}

// applyScorerLocked drives the per-entry scorer state machine: states are
// "no scorer" and "scorer X active", and a transition fires only when the
// requested state differs from the current one. An empty requested id
// resolves to the scorer tagged "default" when one is declared, else to the
// no-scorer state. Caller holds e.mu.
func (e *Entry) applyScorerLocked(requested string) error {
	if requested == "" {
		if _, ok := e.scorers[DefaultScorerID]; ok {
			requested = DefaultScorerID
		}
	}
	if requested == e.activeScorer {
		return nil
	}

	swapper, ok := e.eng.(engine.ScorerSwapper)
	if !ok {
		return fmt.Errorf("registry: engine type %q declares scorer capability but implements no swap", e.Type)
	}

	if requested == "" {
		if err := swapper.ClearScorer(); err != nil {
			return err
		}
		e.activeScorer = ""
		if e.swapHook != nil {
			e.swapHook()
		}
		return nil
	}

	path, ok := e.scorers[requested]
	if !ok {
		return fmt.Errorf("%w: %q for model %q", ErrUnknownScorer, requested, e.ID)
	}
	if err := swapper.SwapScorer(path); err != nil {
		return err
	}
	e.activeScorer = requested
	if e.swapHook != nil {
		e.swapHook()
	}
	return nil
}

// Close releases the owned engine handle.
func (e *Entry) Close() error { return e.eng.Close() }

// Registry maps model identifiers to loaded entries. Built once at startup;
// safe for concurrent reads thereafter.
type Registry struct {
	entries map[ID]*Entry
}

// New returns an empty registry. An empty registry is a valid, degraded
// state: the gateway still starts and serves an empty capability list.
func New() *Registry {
	return &Registry{entries: make(map[ID]*Entry)}
}

// put inserts an entry, overwriting and closing any previous entry under the
// same identifier (last-config-wins). Returns true when it overwrote.
func (r *Registry) put(e *Entry) bool {
	prev, existed := r.entries[e.ID]
	if existed {
		_ = prev.Close()
	}
	r.entries[e.ID] = e
	return existed
}

// Get looks up an entry by identifier.
func (r *Registry) Get(id ID) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// List returns all entries sorted by identifier.
func (r *Registry) List() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of loaded entries.
func (r *Registry) Len() int { return len(r.entries) }

// Close releases every owned engine handle. Called at process shutdown only.
func (r *Registry) Close() error {
	var errs []error
	for _, e := range r.entries {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", e.ID, err))
		}
	}
	return errors.Join(errs...)
}
