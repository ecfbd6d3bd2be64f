// Command sauti is the speech gateway server: it loads the model registry
// from configuration and serves the transcription and synthesis HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sautilabs/sauti/internal/config"
	"github.com/sautilabs/sauti/internal/gateway"
	"github.com/sautilabs/sauti/internal/observe"
	"github.com/sautilabs/sauti/internal/registry"
	"github.com/sautilabs/sauti/internal/synth"
)

// Environment variables. Flags win when both are set.
const (
	envConfig        = "SAUTI_CONFIG"
	envModelsRoot    = "MODELS_ROOT"
	envVocabsRoot    = "VOCABS_ROOT"
	envArtifactsRoot = "ARTIFACTS_ROOT"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", envOr(envConfig, "config.json"), "path to the JSON configuration file")
	modelsRoot := flag.String("models", envOr(envModelsRoot, "models"), "directory holding model resources")
	vocabsRoot := flag.String("vocabs", envOr(envVocabsRoot, "vocabs"), "directory holding vocabulary files")
	artifactsRoot := flag.String("artifacts", envOr(envArtifactsRoot, "artifacts"), "directory for synthesized audio artifacts")
	flag.Parse()

	// Configuration loading is fail-open: a missing or broken config file
	// degrades to an empty model list instead of refusing to start.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("config unusable, starting with zero models", "path", *configPath, "err", err)
		cfg = config.Default()
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("sauti starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"models_root", *modelsRoot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownProviders, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "sauti"})
	if err != nil {
		slog.Error("init telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownProviders(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	roots := registry.Roots{Models: *modelsRoot, Vocabs: *vocabsRoot}
	reg, loaded := registry.Build(cfg, roots, registry.DefaultConstructors())
	defer func() {
		if err := reg.Close(); err != nil {
			slog.Warn("registry close", "err", err)
		}
	}()
	// loaded counts every successful load including duplicate-id overwrites;
	// the gauge must reflect the entries actually in the registry.
	metrics.LoadedModels.Add(ctx, int64(reg.Len()))
	slog.Info("model registry built", "loaded", loaded, "registered", reg.Len(), "declared", len(cfg.Models))

	synthService, err := buildSynthService(cfg, *artifactsRoot)
	if err != nil {
		slog.Error("build synthesis service", "err", err)
		return 1
	}
	if synthService != nil {
		defer func() {
			if err := synthService.Close(); err != nil {
				slog.Warn("synthesis service close", "err", err)
			}
		}()
	}

	router := gateway.NewRouter(reg, metrics, nil,
		time.Duration(cfg.Server.InferenceTimeoutSec)*time.Second)
	server := gateway.NewServer(router, synthService, metrics)

	slog.Info("server ready", "addr", cfg.Server.ListenAddr)
	if err := server.Run(ctx, cfg.Server.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// buildSynthService wires the TTS path when a backend is configured. Returns
// nil (and no error) when cfg.TTS.BaseURL is empty; the synthesis endpoints
// then answer 503.
func buildSynthService(cfg *config.Config, artifactsRoot string) (*synth.Service, error) {
	if cfg.TTS.BaseURL == "" {
		slog.Info("no TTS backend configured, synthesis disabled")
		return nil, nil
	}

	client, err := synth.NewCoquiClient(cfg.TTS.BaseURL,
		synth.WithTimeout(time.Duration(cfg.TTS.TimeoutSec)*time.Second),
		synth.WithVoices(cfg.TTS.Voices),
	)
	if err != nil {
		return nil, err
	}

	ledger, err := synth.OpenLedger(filepath.Join(artifactsRoot, "ledger"))
	if err != nil {
		return nil, err
	}
	store, err := synth.NewStore(filepath.Join(artifactsRoot, "audio"))
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	return synth.NewService(client, ledger, store, nil), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
