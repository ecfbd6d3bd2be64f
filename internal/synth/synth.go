// Package synth implements the text-to-speech path: speakable-text
// sanitization, a Coqui TTS server client, a BadgerDB deduplication ledger,
// and a filesystem artifact store, orchestrated by [Service].
//
// Synthesis is idempotent per (message id, utterance name): a pair already in
// the ledger answers "duplicate_message", an artifact already on disk answers
// "exists", and only a genuinely new utterance reaches the engine.
package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sautilabs/sauti/internal/transform"
)

// Outcome values reported by [Service.Synthesize].
const (
	OutcomeSynthesized = "synthesized"
	OutcomeDuplicate   = "duplicate_message"
	OutcomeExists      = "exists"
)

// ErrEmptyText is returned when the text contains nothing speakable after
// sanitization.
var ErrEmptyText = errors.New("synth: no speakable text after sanitization")

// Synthesizer produces a WAV-encoded utterance for the given text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
	Close() error
}

// Response describes the result of one synthesis request.
type Response struct {
	// Message is one of the Outcome constants.
	Message string `json:"message"`

	// File is the artifact name, retrievable via the audio endpoint.
	File string `json:"file"`
}

// Service orchestrates the synthesis path. Safe for concurrent use.
type Service struct {
	engine   Synthesizer
	ledger   *Ledger
	store    *Store
	pipeline transform.Pipeline
}

// NewService wires a synthesizer, ledger, and artifact store together.
// pipeline may be nil.
func NewService(engine Synthesizer, ledger *Ledger, store *Store, pipeline transform.Pipeline) *Service {
	return &Service{
		engine:   engine,
		ledger:   ledger,
		store:    store,
		pipeline: pipeline,
	}
}

// Store exposes the artifact store for file serving.
func (s *Service) Store() *Store {
	return s.store
}

// UtteranceName derives the artifact filename for a message's text. The name
// binds the message id to a digest of the sanitized text, so the same message
// resent with different text produces a distinct artifact.
func UtteranceName(messageID, speakable string) string {
	sum := sha256.Sum256([]byte(speakable))
	return messageID + "_" + hex.EncodeToString(sum[:6]) + ".wav"
}

// Synthesize produces or reuses the audio artifact for (messageID, text).
//
// The ledger check and append run as one atomic read-or-set, so two
// concurrent requests for the same pair cannot both reach the engine. A
// ledger entry recorded for a synthesis that then fails is rolled back,
// keeping a later retry eligible.
func (s *Service) Synthesize(ctx context.Context, lang, text, messageID string) (*Response, error) {
	speakable := Speakable(s.pipeline.Apply(text))
	if speakable == "" {
		return nil, ErrEmptyText
	}
	name := UtteranceName(messageID, speakable)

	added, err := s.ledger.Record(messageID, name)
	if err != nil {
		return nil, err
	}
	if !added {
		return &Response{Message: OutcomeDuplicate, File: name}, nil
	}

	if s.store.Exists(name) {
		return &Response{Message: OutcomeExists, File: name}, nil
	}

	wav, err := s.engine.Synthesize(ctx, speakable, lang)
	if err != nil {
		if ferr := s.ledger.Forget(messageID, name); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return nil, fmt.Errorf("synth: synthesize %q: %w", messageID, err)
	}

	if err := s.store.Save(name, wav); err != nil {
		if ferr := s.ledger.Forget(messageID, name); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return nil, err
	}

	return &Response{Message: OutcomeSynthesized, File: name}, nil
}

// Close releases the engine and ledger.
func (s *Service) Close() error {
	return errors.Join(s.engine.Close(), s.ledger.Close())
}
