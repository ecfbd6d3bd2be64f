package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sautilabs/sauti/internal/config"
	"github.com/sautilabs/sauti/internal/vocab"
	"github.com/sautilabs/sauti/pkg/engine"
	coquiengine "github.com/sautilabs/sauti/pkg/engine/coqui"
	voskengine "github.com/sautilabs/sauti/pkg/engine/vosk"
	whisperengine "github.com/sautilabs/sauti/pkg/engine/whisper"
)

// Roots are the filesystem roots model and vocabulary paths resolve against.
type Roots struct {
	Models string
	Vocabs string
}

// BuildSpec is the resolved input handed to an engine constructor after all
// validation has passed.
type BuildSpec struct {
	// ModelPath is the absolute model resource path. For backend kinds with a
	// structural file check this is the resolved model file, not the declared
	// directory.
	ModelPath string

	// SampleRate is the declared per-model rate, already defaulted.
	SampleRate int

	// VocabularyJSON is the canonical persistent vocabulary, empty when the
	// model is unrestricted.
	VocabularyJSON string
}

// Constructor instantiates one native engine. Construction is the expensive,
// possibly slow step — the reason loading happens once at startup.
type Constructor func(BuildSpec) (engine.Engine, error)

// Constructors maps each backend kind to its constructor. The map doubles as
// the recognized-type check: a spec naming a kind absent here is skipped.
type Constructors map[engine.Type]Constructor

// DefaultConstructors wires the real engine adapters.
func DefaultConstructors() Constructors {
	return Constructors{
		engine.TypeVosk: func(s BuildSpec) (engine.Engine, error) {
			opts := []voskengine.Option{voskengine.WithSampleRate(s.SampleRate)}
			if s.VocabularyJSON != "" {
				opts = append(opts, voskengine.WithVocabulary(s.VocabularyJSON))
			}
			return voskengine.New(s.ModelPath, opts...)
		},
		engine.TypeCoqui: func(s BuildSpec) (engine.Engine, error) {
			return coquiengine.New(s.ModelPath)
		},
		engine.TypeWhisper: func(s BuildSpec) (engine.Engine, error) {
			return whisperengine.New(s.ModelPath)
		},
	}
}

// coquiModelExtensions are the recognizable acoustic-model file extensions
// for the DeepSpeech-family backend. A coqui model directory must contain
// exactly one such file.
var coquiModelExtensions = []string{".pbmm", ".tflite"}

// Build populates a registry from the declarative model-specification list.
//
// Validation is defensive and per-entry: a malformed or incomplete spec is
// skipped with a diagnostic and the load continues with the next one. The
// whole build never aborts; an empty registry is a valid degraded outcome.
// Returns the registry and the count of successfully loaded models.
func Build(cfg *config.Config, roots Roots, cons Constructors) (*Registry, int) {
	reg := New()

	if _, err := os.Stat(roots.Models); err != nil {
		slog.Error("models directory not found, no models will be loaded", "path", roots.Models)
		return reg, 0
	}
	if roots.Vocabs != "" {
		if _, err := os.Stat(roots.Vocabs); err != nil {
			slog.Warn("vocabularies directory not found, entries with a vocabulary will be skipped", "path", roots.Vocabs)
		}
	}
	if len(cfg.Languages) == 0 {
		slog.Warn("language name table ('languages') is empty; display names will be synthesized")
	}
	if len(cfg.Models) == 0 {
		slog.Error("model specification list ('models') is empty, no models will be loaded")
		return reg, 0
	}

	loaded := 0
	for i, spec := range cfg.Models {
		if !spec.Enabled() {
			continue
		}
		entry, ok := buildEntry(i, spec, cfg.Languages, roots, cons)
		if !ok {
			continue
		}
		if reg.put(entry) {
			slog.Warn("overwriting model; use 'alt' tags to load alternate models for the same language",
				"model", entry.ID)
		}
		loaded++
		slog.Info("model loaded",
			"model", entry.ID,
			"type", entry.Type,
			"name", entry.DisplayName,
			"sample_rate", entry.SampleRate,
			"scorers", entry.ScorerIDs(),
		)
	}
	return reg, loaded
}

// buildEntry validates one model spec and constructs its entry. Any
// validation failure logs a diagnostic and reports ok=false; the caller moves
// on to the next spec.
func buildEntry(index int, spec config.ModelSpec, languages map[string]string, roots Roots, cons Constructors) (*Entry, bool) {
	if spec.Lang == "" {
		slog.Warn("language (lang) not specified for a model, skipping load", "index", index)
		return nil, false
	}
	if spec.ModelType == "" {
		slog.Warn("model type (model_type) not specified for model, skipping load", "index", index, "lang", spec.Lang)
		return nil, false
	}
	ctor, recognized := cons[spec.ModelType]
	if !recognized {
		slog.Warn("model_type not recognized, skipping load", "index", index, "model_type", spec.ModelType)
		return nil, false
	}

	id := MakeID(spec.Lang, spec.Alt)

	displayName, known := languages[spec.Lang]
	if !known {
		slog.Warn("language code not defined in languages table, using synthesized display name",
			"model", id, "lang", spec.Lang)
		displayName = UnknownLanguage
	}

	if spec.ModelPath == "" {
		slog.Warn("model path not specified for model, skipping load", "model", id)
		return nil, false
	}
	modelPath := filepath.Join(roots.Models, spec.ModelPath)
	if _, err := os.Stat(modelPath); err != nil {
		slog.Warn("model path not found for model, skipping load", "model", id, "path", modelPath)
		return nil, false
	}

	if spec.ModelType == engine.TypeCoqui {
		resolved, err := resolveCoquiModelFile(modelPath)
		if err != nil {
			slog.Warn("model directory failed structural check, skipping load", "model", id, "err", err)
			return nil, false
		}
		modelPath = resolved
	}

	rate := spec.Framerate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	var vocabulary *vocab.Vocabulary
	if spec.Vocabulary != "" {
		if spec.ModelType != engine.TypeVosk {
			slog.Warn("vocabulary declared for a backend without restricted-vocabulary support, ignoring",
				"model", id, "model_type", spec.ModelType)
		} else {
			vocabPath := filepath.Join(roots.Vocabs, spec.Vocabulary)
			v, err := vocab.Load(vocabPath)
			if err != nil {
				// A model declared with a vocabulary it cannot get is worse
				// loaded than absent: skip the whole entry.
				slog.Warn("vocabulary not loadable for model, skipping load", "model", id, "path", vocabPath, "err", err)
				return nil, false
			}
			vocabulary = &v
			slog.Info("restricted vocabulary loaded", "model", id, "items", v.Size)
		}
	}

	scorers := make(map[string]string)
	if len(spec.Scorers) > 0 {
		if spec.ModelType != engine.TypeCoqui {
			slog.Warn("scorers declared for a backend without scorer support, ignoring",
				"model", id, "model_type", spec.ModelType)
		} else {
			for sid, rel := range spec.Scorers {
				path := filepath.Join(roots.Models, rel)
				if _, err := os.Stat(path); err != nil {
					slog.Warn("scorer file not found, dropping scorer", "model", id, "scorer", sid, "path", path)
					continue
				}
				scorers[sid] = path
			}
		}
	}

	buildSpec := BuildSpec{ModelPath: modelPath, SampleRate: rate}
	if vocabulary != nil {
		buildSpec.VocabularyJSON = vocabulary.JSON
	}
	eng, err := ctor(buildSpec)
	if err != nil {
		slog.Warn("engine construction failed, skipping load", "model", id, "err", err)
		return nil, false
	}

	// Fixed-rate backends demand the rate the loaded model reports, not the
	// declared one. Trusting a misdeclared framerate would fail every
	// request at transcribe time instead of being corrected here.
	if !eng.Capabilities().RateRebind {
		if engineRate := eng.SampleRate(); engineRate > 0 && engineRate != rate {
			slog.Warn("declared framerate differs from the model's fixed rate, using the model's",
				"model", id, "declared", rate, "model_rate", engineRate)
			rate = engineRate
		}
	}

	return &Entry{
		ID:          id,
		Type:        spec.ModelType,
		DisplayName: displayName,
		SampleRate:  rate,
		Vocabulary:  vocabulary,
		scorers:     scorers,
		eng:         eng,
	}, true
}

// resolveCoquiModelFile enforces the structural check for DeepSpeech-family
// models: when path is a directory, exactly one acoustic-model file with a
// recognizable extension must exist directly under it.
func resolveCoquiModelFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}

	var matches []string
	for _, ext := range coquiModelExtensions {
		found, err := filepath.Glob(filepath.Join(path, "*"+ext))
		if err != nil {
			return "", err
		}
		matches = append(matches, found...)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no model file (%v) under %q", coquiModelExtensions, path)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%d model files under %q, need exactly one", len(matches), path)
	}
}
